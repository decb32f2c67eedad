package ml

import (
	"errors"
	"fmt"
	"strings"
)

// ClassMetrics is one row of a classification report.
type ClassMetrics struct {
	Class     string  `json:"class"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report summarises predictions on the held-out partition.
type Report struct {
	Accuracy    float64        `json:"accuracy"`
	Samples     int            `json:"samples"`
	Classes     []ClassMetrics `json:"classes"`
	MacroAvg    ClassMetrics   `json:"macro_avg"`
	WeightedAvg ClassMetrics   `json:"weighted_avg"`
}

func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue))
}

// ClassificationReport computes per-class precision, recall and F1 for every
// class in classNames, including classes absent from yTrue and yPred. Undefined
// ratios are reported as zero.
func ClassificationReport(yTrue, yPred []int, classNames []string) (*Report, error) {
	if len(yTrue) != len(yPred) {
		return nil, errors.New("yTrue and yPred size mismatch")
	}
	k := len(classNames)
	tp := make([]int, k)
	predicted := make([]int, k)
	actual := make([]int, k)
	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		if t < 0 || t >= k || p < 0 || p >= k {
			return nil, fmt.Errorf("label out of range at row %d", i)
		}
		actual[t]++
		predicted[p]++
		if t == p {
			tp[t]++
		}
	}

	report := &Report{
		Accuracy: Accuracy(yTrue, yPred),
		Samples:  len(yTrue),
		Classes:  make([]ClassMetrics, k),
	}
	report.MacroAvg.Class = "macro avg"
	report.WeightedAvg.Class = "weighted avg"
	for c := 0; c < k; c++ {
		m := ClassMetrics{
			Class:     classNames[c],
			Precision: safeDiv(float64(tp[c]), float64(predicted[c])),
			Recall:    safeDiv(float64(tp[c]), float64(actual[c])),
			Support:   actual[c],
		}
		m.F1 = safeDiv(2*m.Precision*m.Recall, m.Precision+m.Recall)
		report.Classes[c] = m

		report.MacroAvg.Precision += m.Precision / float64(k)
		report.MacroAvg.Recall += m.Recall / float64(k)
		report.MacroAvg.F1 += m.F1 / float64(k)
		report.MacroAvg.Support += m.Support

		w := safeDiv(float64(m.Support), float64(len(yTrue)))
		report.WeightedAvg.Precision += m.Precision * w
		report.WeightedAvg.Recall += m.Recall * w
		report.WeightedAvg.F1 += m.F1 * w
		report.WeightedAvg.Support += m.Support
	}
	return report, nil
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// String renders the report as an aligned text table.
func (r *Report) String() string {
	width := len("weighted avg")
	for _, c := range r.Classes {
		if len(c.Class) > width {
			width = len(c.Class)
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%*s %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")
	for _, c := range r.Classes {
		fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, c.Class, c.Precision, c.Recall, c.F1, c.Support)
	}
	fmt.Fprintf(&b, "\n%*s %9s %9s %9.2f %9d\n", width, "accuracy", "", "", r.Accuracy, r.Samples)
	for _, c := range []ClassMetrics{r.MacroAvg, r.WeightedAvg} {
		fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, c.Class, c.Precision, c.Recall, c.F1, c.Support)
	}
	return b.String()
}
