package document

import (
	"encoding/json"
	"reflect"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"smooshr/backend/pkg/models"
)

const workflowJSON = `{
  "id": "wf-1",
  "title": "Intake",
  "owner": "user-1",
  "created_date": "2024-05-01T10:00:00Z",
  "extra": {"ui": {"collapsed": true}, "rank": 1.50},
  "schema": {
    "version": "0.1",
    "operations": [
      {"type": "fileTypeValidation", "id": "op-1", "title": "Validate file type", "description": null, "expectedFileType": ".csv"}
    ],
    "fieldsetSchemas": [
      {"id": "fs-1", "name": "Demographics", "orderMatters": true, "allowExtraColumns": "no",
       "fields": [{"id": "f-1", "name": "age", "caseSensitive": true, "required": true,
                   "dataTypeValidation": {"dataType": "number"}, "allowEmptyValues": false, "allowedValues": null}]}
    ],
    "params": [
      {"id": "p-1", "name": "region", "displayName": "Region", "description": "", "required": true, "type": "string"}
    ]
  }
}`

func pointerOf(v any) uintptr {
	return reflect.ValueOf(v).Pointer()
}

var _ = Describe("Store", func() {
	var store *Store

	BeforeEach(func() {
		var err error
		store, err = Open([]byte(workflowJSON))
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("loading and saving", func() {
		It("re-emits the loaded document without edits", func() {
			raw, err := store.Raw()
			Expect(err).NotTo(HaveOccurred())
			Expect(raw).To(MatchJSON(workflowJSON))
		})

		It("keeps numbers verbatim", func() {
			raw, err := store.Raw()
			Expect(err).NotTo(HaveOccurred())
			Expect(string(raw)).To(ContainSubstring(`"rank":1.50`))
		})

		It("rejects malformed JSON", func() {
			_, err := Open([]byte(`{"id":`))
			Expect(err).To(HaveOccurred())
		})

		It("decodes the typed workflow", func() {
			wf, err := store.Workflow()
			Expect(err).NotTo(HaveOccurred())
			Expect(wf.Title).To(Equal("Intake"))
			Expect(wf.Schema.Operations).To(HaveLen(1))
			Expect(wf.Schema.Operations[0].ExpectedFileType).To(Equal(".csv"))
		})
	})

	Describe("GetValue and SetValue", func() {
		It("reads nested values by dot path", func() {
			v, err := store.GetValue("schema.operations.0.title")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("Validate file type"))
		})

		It("reports missing paths", func() {
			_, err := store.GetValue("schema.operations.5.title")
			Expect(err).To(MatchError(ErrPathNotFound))
			_, err = store.GetValue("title.length")
			Expect(err).To(MatchError(ErrNotContainer))
		})

		It("writes a value and leaves unrelated subtrees shared", func() {
			before := store.Snapshot()
			Expect(store.SetValue("schema.operations.0.title", "Check extension")).To(Succeed())
			after := store.Snapshot()

			v, _ := after.Value("schema.operations.0.title")
			Expect(v).To(Equal("Check extension"))
			old, _ := before.Value("schema.operations.0.title")
			Expect(old).To(Equal("Validate file type"))

			for _, path := range []string{"extra", "schema.fieldsetSchemas", "schema.params"} {
				b, _ := before.Value(path)
				a, _ := after.Value(path)
				Expect(pointerOf(a)).To(Equal(pointerOf(b)), path)
			}
			b, _ := before.Value("schema.operations")
			a, _ := after.Value("schema.operations")
			Expect(pointerOf(a)).NotTo(Equal(pointerOf(b)))
		})

		It("creates a missing leaf key but not a missing parent", func() {
			Expect(store.SetValue("schema.note", "hello")).To(Succeed())
			Expect(store.SetValue("schema.missing.note", "hello")).To(MatchError(ErrPathNotFound))
		})

		It("encodes Go values into the tree", func() {
			Expect(store.SetValue("schema.params.0", models.WorkflowParam{
				ID: "p-1", Name: "area", DisplayName: "Area", Type: models.ParamTypeString,
			})).To(Succeed())
			v, err := store.GetValue("schema.params.0.displayName")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("Area"))
		})
	})

	Describe("typed edits", func() {
		It("sets the title", func() {
			Expect(store.SetTitle("Renamed")).To(Succeed())
			wf, _ := store.Workflow()
			Expect(wf.Title).To(Equal("Renamed"))
		})

		It("inserts and updates operations by id", func() {
			op := models.Operation{Type: models.OperationRowCountValidation, ID: "op-2", Title: "Rows"}
			Expect(store.InsertOperation(op)).To(Succeed())

			min := 1
			op.MinRowCount = &min
			Expect(store.UpdateOperation(op)).To(Succeed())

			schema, err := store.Schema()
			Expect(err).NotTo(HaveOccurred())
			Expect(schema.Operations).To(HaveLen(2))
			Expect(*schema.Operations[1].MinRowCount).To(Equal(1))
		})

		It("fails to update an unknown operation and commits nothing", func() {
			before := store.Snapshot()
			err := store.UpdateOperation(models.Operation{Type: models.OperationFileTypeValidation, ID: "nope"})
			Expect(err).To(MatchError(ErrNoSuchEntry))
			Expect(pointerOf(store.Snapshot().root)).To(Equal(pointerOf(before.root)))
		})

		It("removes fieldset schemas by index without touching operations", func() {
			Expect(store.AddFieldsetSchema(models.FieldsetSchema{ID: "fs-2", Name: "Second", Fields: []models.FieldSchema{}})).To(Succeed())
			Expect(store.RemoveFieldsetSchemaByIndex(0)).To(Succeed())

			schema, _ := store.Schema()
			Expect(schema.FieldsetSchemas).To(HaveLen(1))
			Expect(schema.FieldsetSchemas[0].ID).To(Equal("fs-2"))
			Expect(schema.Operations).To(HaveLen(1))
			Expect(store.RemoveFieldsetSchemaByIndex(3)).To(MatchError(ErrPathNotFound))
		})

		It("rewrites a fieldset schema in place", func() {
			Expect(store.UpdateFieldsetSchemaByIndex(0, func(fs models.FieldsetSchema) models.FieldsetSchema {
				fs.OrderMatters = false
				fs.AllowExtraColumns = models.ExtraColumnsAnywhere
				return fs
			})).To(Succeed())
			schema, _ := store.Schema()
			Expect(schema.FieldsetSchemas[0].OrderMatters).To(BeFalse())
			Expect(schema.FieldsetSchemas[0].AllowExtraColumns).To(Equal(models.ExtraColumnsAnywhere))
		})

		It("keeps param names in sync with display names", func() {
			Expect(store.AddParam(models.WorkflowParam{ID: "p-2", DisplayName: "Cut off Date", Type: models.ParamTypeString})).To(Succeed())
			Expect(store.UpdateParam(models.WorkflowParam{ID: "p-1", DisplayName: "Sales Region", Type: models.ParamTypeString})).To(Succeed())

			schema, _ := store.Schema()
			Expect(schema.Params[0].Name).To(Equal("sales_Region"))
			Expect(schema.Params[1].Name).To(Equal("cut_off_Date"))

			Expect(store.RemoveParamByIndex(0)).To(Succeed())
			schema, _ = store.Schema()
			Expect(schema.Params).To(HaveLen(1))
			Expect(schema.Params[0].ID).To(Equal("p-2"))
		})

		It("appends to a missing list", func() {
			s, err := Open([]byte(`{"id":"wf","title":"t","schema":{"version":"0.1"}}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(s.AddParam(models.WorkflowParam{ID: "p", DisplayName: "P", Type: models.ParamTypeNumber})).To(Succeed())
			schema, _ := s.Schema()
			Expect(schema.Params).To(HaveLen(1))
		})
	})

	Describe("subscriptions", func() {
		It("delivers before and after snapshots for every commit", func() {
			var changes []Change
			unsubscribe := store.Subscribe(func(c Change) { changes = append(changes, c) })

			Expect(store.SetTitle("One")).To(Succeed())
			Expect(store.SetTitle("Two")).To(Succeed())
			unsubscribe()
			Expect(store.SetTitle("Three")).To(Succeed())

			Expect(changes).To(HaveLen(2))
			b, _ := changes[1].Before.Value("title")
			a, _ := changes[1].After.Value("title")
			Expect(b).To(Equal("One"))
			Expect(a).To(Equal("Two"))
			Expect(changes[0].Origin).To(Equal(OriginEdit))
		})

		It("tags replacements with their origin", func() {
			snap := store.Snapshot()
			var got []Origin
			store.Subscribe(func(c Change) { got = append(got, c.Origin) })

			Expect(store.SetTitle("Edited")).To(Succeed())
			store.Replace(snap, OriginSync)
			Expect(got).To(Equal([]Origin{OriginEdit, OriginSync}))

			wf, _ := store.Workflow()
			Expect(wf.Title).To(Equal("Intake"))
		})

		It("serialises concurrent edits", func() {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					Expect(store.AddFieldsetSchema(models.FieldsetSchema{ID: "x", Fields: []models.FieldSchema{}})).To(Succeed())
				}()
			}
			wg.Wait()
			v, _ := store.GetValue("schema.fieldsetSchemas")
			Expect(v).To(HaveLen(21))
		})
	})

	It("never mutates a snapshot it handed out", func() {
		snap := store.Snapshot()
		raw, _ := snap.Bytes()
		Expect(store.RemoveOperationByIndex(0)).To(Succeed())
		after, _ := snap.Bytes()
		Expect(after).To(Equal(raw))

		var decoded map[string]any
		Expect(json.Unmarshal(after, &decoded)).To(Succeed())
	})
})
