package ml

// Classifier is a fitted multi-class model over scaled feature vectors.
// Class indices are the codes of the bundle's target encoder.
type Classifier interface {
	Fit(features [][]float64, labels []int, numClasses int) error
	Predict(features []float64) (int, error)
	PredictProba(features []float64) ([]float64, error)
	Name() string
	// Shape reports the feature width and class count the model was fit on.
	Shape() (features, classes int)
	// Validate checks the fitted state, typically after decoding.
	Validate() error
}

const (
	ModelTypeKNN          = "knn"
	ModelTypeDecisionTree = "decision_tree"
)

// argmax returns the index of the largest value, preferring the lowest index on ties.
func argmax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}
