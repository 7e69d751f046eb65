package sanitizer

import (
	"fmt"
	"sort"

	"github.com/crimson-sun/apsdiag/internal/model"
)

// binaryPair is a recognized negative/positive label vocabulary.
type binaryPair struct {
	neg, pos string
}

var binaryPairs = []binaryPair{
	{"neg", "pos"},
	{"negative", "positive"},
	{"normal", "fault"},
	{"normal", "faulty"},
	{"0", "1"},
	{"false", "true"},
}

// normalNames sort first in multiclass mode.
var normalNames = map[string]struct{}{
	"normal":   {},
	"neg":      {},
	"negative": {},
}

// encodeLabels maps label text to class indices. texts[i] is ignored when
// keep[i] is false. Distinct labels are grouped by folded token and the first
// spelling seen becomes the class name.
func (s *Sanitizer) encodeLabels(texts []string, keep []bool, fold *folder) ([]int, []string, model.LabelMode, error) {
	spelling := make(map[string]string)
	var tokens []string
	rowTokens := make([]string, len(texts))
	for i, t := range texts {
		if !keep[i] {
			continue
		}
		tok := fold.token(t)
		rowTokens[i] = tok
		if _, ok := spelling[tok]; !ok {
			spelling[tok] = t
			tokens = append(tokens, tok)
		}
	}

	var (
		order []string // class index -> token
		names []string
		mode  model.LabelMode
	)
	pair, isPair := matchPair(tokens)
	switch s.cfg.LabelMode {
	case LabelBinary:
		if len(tokens) > 2 {
			return nil, nil, "", fmt.Errorf("sanitize: %w: binary labels requested but found %d classes",
				model.ErrValidation, len(tokens))
		}
		mode = model.LabelBinary
		if isPair {
			order, names = pairOrder(pair, spelling)
		} else {
			order = multiclassOrder(tokens)
			for _, tok := range order {
				names = append(names, spelling[tok])
			}
			if len(order) == 1 {
				order = append(order, "\x00positive")
				names = append(names, "positive")
			}
			s.logger.Warn("unrecognized binary labels, ordering normal-first", "labels", names)
		}
	case LabelMulticlass:
		mode = model.LabelMulticlass
		order = multiclassOrder(tokens)
		for _, tok := range order {
			names = append(names, spelling[tok])
		}
	default:
		if isPair {
			mode = model.LabelBinary
			order, names = pairOrder(pair, spelling)
		} else {
			mode = model.LabelMulticlass
			order = multiclassOrder(tokens)
			for _, tok := range order {
				names = append(names, spelling[tok])
			}
		}
	}

	index := make(map[string]int, len(order))
	for i, tok := range order {
		index[tok] = i
	}
	labels := make([]int, 0, len(texts))
	for i := range texts {
		if keep[i] {
			labels = append(labels, index[rowTokens[i]])
		}
	}
	return labels, names, mode, nil
}

// matchPair finds the first recognized pair containing every token.
func matchPair(tokens []string) (binaryPair, bool) {
	if len(tokens) == 0 || len(tokens) > 2 {
		return binaryPair{}, false
	}
	for _, p := range binaryPairs {
		ok := true
		for _, tok := range tokens {
			if tok != p.neg && tok != p.pos {
				ok = false
				break
			}
		}
		if ok {
			return p, true
		}
	}
	return binaryPair{}, false
}

// pairOrder returns tokens and names for indices 0 (negative) and 1
// (positive). An unseen side is named after the pair vocabulary.
func pairOrder(p binaryPair, spelling map[string]string) ([]string, []string) {
	order := []string{p.neg, p.pos}
	names := make([]string, 2)
	for i, tok := range order {
		if s, ok := spelling[tok]; ok {
			names[i] = s
		} else {
			names[i] = tok
		}
	}
	return order, names
}

func multiclassOrder(tokens []string) []string {
	out := append([]string(nil), tokens...)
	sort.SliceStable(out, func(i, j int) bool {
		_, ni := normalNames[out[i]]
		_, nj := normalNames[out[j]]
		if ni != nj {
			return ni
		}
		return out[i] < out[j]
	})
	return out
}
