package similarity

import "github.com/cognicore/relinker/pkg/relinker/record"

// Function is a named, stateless (aside from a captured IDF map)
// similarity computation over a pair of records — the SimilarityFunction
// entity from the data model.
type Function struct {
	FieldName string
	Compute   func(a, b record.Record) float64
}

// OnField binds a Kernel to a record field name and an IDF map,
// producing the Function the scorer and EM estimator consume. This is
// the one-line adapter spec's data model calls for: Compute reads
// a.Fields[name]/b.Fields[name] (missing → "", never an error).
func OnField(name string, kernel Kernel, idf IDF) Function {
	return Function{
		FieldName: name,
		Compute: func(a, b record.Record) float64 {
			return kernel(a.Field(name), b.Field(name), idf)
		},
	}
}
