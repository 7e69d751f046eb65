package classifier

import (
	"sort"

	"github.com/crimson-sun/apsdiag/internal/model"
)

// evaluate scores held-out predictions. Ratios with a zero denominator are
// 0. Averages are weighted by true-class support.
func evaluate(actual, predicted []int, scores [][]float64, names []string, mode model.LabelMode) *model.ClassificationReport {
	k := len(names)
	cm := make([][]int, k)
	for c := range cm {
		cm[c] = make([]int, k)
	}
	correct := 0
	for i, a := range actual {
		cm[a][predicted[i]]++
		if a == predicted[i] {
			correct++
		}
	}

	rep := &model.ClassificationReport{LabelMode: mode, ConfusionMatrix: cm}
	n := len(actual)
	if n > 0 {
		rep.Accuracy = float64(correct) / float64(n)
	}
	for c := 0; c < k; c++ {
		tp := cm[c][c]
		support, predCount := 0, 0
		for o := 0; o < k; o++ {
			support += cm[c][o]
			predCount += cm[o][c]
		}
		cls := model.ClassMetrics{
			Class:     names[c],
			Precision: ratio(tp, predCount),
			Recall:    ratio(tp, support),
			Support:   support,
		}
		if s := cls.Precision + cls.Recall; s > 0 {
			cls.F1 = 2 * cls.Precision * cls.Recall / s
		}
		rep.PerClass = append(rep.PerClass, cls)
		if n > 0 {
			w := float64(support) / float64(n)
			rep.Precision += w * cls.Precision
			rep.Recall += w * cls.Recall
			rep.F1 += w * cls.F1
		}
	}

	if mode == model.LabelBinary && k == 2 {
		pos := make([]float64, len(scores))
		for i, s := range scores {
			pos[i] = s[1]
		}
		rep.ROCAUC = rocAUC(actual, pos)
	}
	return rep
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// rocAUC is the Mann-Whitney estimate of the area under the ROC curve with
// tied scores sharing their average rank. It has no value when either class
// is absent.
func rocAUC(labels []int, scores []float64) model.OptFloat {
	n := len(labels)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && scores[order[j+1]] == scores[order[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[order[k]] = avg
		}
		i = j + 1
	}

	var nPos, nNeg int
	var rankSum float64
	for i, l := range labels {
		if l == 1 {
			nPos++
			rankSum += ranks[i]
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return model.None()
	}
	u := rankSum - float64(nPos)*float64(nPos+1)/2
	return model.Some(u / (float64(nPos) * float64(nNeg)))
}
