package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

const (
	DefaultTestRatio = 0.2
	DefaultSeed      = 42
)

// Split holds the row indices of the two partitions.
type Split struct {
	Train []int
	Test  []int
}

// StratifiedSplit partitions row indices so that every class keeps its share
// in both partitions. The test size is ceil(testRatio*n); per-class test counts
// use largest-remainder allocation. The same labels and seed always give the
// same split.
func StratifiedSplit(labels []int, testRatio float64, seed int64) (Split, error) {
	n := len(labels)
	if n == 0 {
		return Split{}, errors.New("labels is empty")
	}
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = DefaultTestRatio
	}

	byClass := make(map[int][]int)
	for i, label := range labels {
		byClass[label] = append(byClass[label], i)
	}
	classes := make([]int, 0, len(byClass))
	for class, rows := range byClass {
		if len(rows) < 2 {
			return Split{}, fmt.Errorf("%w: class %d has %d row", ErrTooFewPerClass, class, len(rows))
		}
		classes = append(classes, class)
	}
	sort.Ints(classes)

	nTest := int(math.Ceil(testRatio * float64(n)))
	nTrain := n - nTest
	if nTest < len(classes) || nTrain < len(classes) {
		return Split{}, fmt.Errorf("split of %d rows into %d/%d cannot hold %d classes", n, nTrain, nTest, len(classes))
	}

	testCounts := allocate(classes, byClass, nTest, n)

	rnd := rand.New(rand.NewSource(seed))
	var split Split
	for _, class := range classes {
		rows := append([]int(nil), byClass[class]...)
		rnd.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		k := testCounts[class]
		split.Test = append(split.Test, rows[:k]...)
		split.Train = append(split.Train, rows[k:]...)
	}
	rnd.Shuffle(len(split.Train), func(i, j int) { split.Train[i], split.Train[j] = split.Train[j], split.Train[i] })
	rnd.Shuffle(len(split.Test), func(i, j int) { split.Test[i], split.Test[j] = split.Test[j], split.Test[i] })
	return split, nil
}

// allocate distributes total draws over classes proportionally to class size.
// Each class keeps at least one row on the other side.
func allocate(classes []int, byClass map[int][]int, total, n int) map[int]int {
	type remainder struct {
		class int
		frac  float64
	}
	counts := make(map[int]int, len(classes))
	rems := make([]remainder, 0, len(classes))
	assigned := 0
	for _, class := range classes {
		exact := float64(len(byClass[class])) * float64(total) / float64(n)
		base := int(math.Floor(exact))
		counts[class] = base
		assigned += base
		rems = append(rems, remainder{class: class, frac: exact - float64(base)})
	}
	sort.SliceStable(rems, func(a, b int) bool { return rems[a].frac > rems[b].frac })
	for i := 0; assigned < total; i = (i + 1) % len(rems) {
		class := rems[i].class
		if counts[class] < len(byClass[class])-1 {
			counts[class]++
			assigned++
		}
	}
	return counts
}

// Gather selects rows and labels by index.
func Gather(features [][]float64, labels []int, idx []int) ([][]float64, []int) {
	x := make([][]float64, len(idx))
	y := make([]int, len(idx))
	for i, j := range idx {
		x[i] = features[j]
		y[i] = labels[j]
	}
	return x, y
}
