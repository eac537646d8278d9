package model

import (
	"fmt"

	"github.com/richxcame/fraudscore/internal/features"
)

// treeNode is one node of an exported decision tree. Internal nodes route
// on v[Feature] <= Threshold; leaves carry the fraud probability.
type treeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Leaf      bool    `json:"leaf"`
	Value     float64 `json:"value"`
}

type tree struct {
	Nodes []treeNode `json:"nodes"`
}

// treeEnsembleArtifact is the JSON payload of an exported forest.
type treeEnsembleArtifact struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Trees []tree `json:"trees"`
}

// TreeEnsemble is a supervised forest classifier: the mean of the per-tree
// leaf probabilities.
type TreeEnsemble struct {
	name  string
	trees []tree
}

var _ Classifier = (*TreeEnsemble)(nil)

func newTreeEnsemble(a treeEnsembleArtifact) (*TreeEnsemble, error) {
	if len(a.Trees) == 0 {
		return nil, fmt.Errorf("model %q: artifact contains no trees", a.Name)
	}
	for ti, t := range a.Trees {
		if len(t.Nodes) == 0 {
			return nil, fmt.Errorf("model %q: tree %d is empty", a.Name, ti)
		}
		for ni, n := range t.Nodes {
			if n.Leaf {
				continue
			}
			if n.Feature < 0 || n.Feature >= features.Count {
				return nil, fmt.Errorf("model %q: tree %d node %d references feature %d outside the schema", a.Name, ti, ni, n.Feature)
			}
			if n.Left < 0 || n.Left >= len(t.Nodes) || n.Right < 0 || n.Right >= len(t.Nodes) {
				return nil, fmt.Errorf("model %q: tree %d node %d has out-of-range children", a.Name, ti, ni)
			}
		}
	}
	return &TreeEnsemble{name: a.Name, trees: a.Trees}, nil
}

// Name returns the classifier name.
func (m *TreeEnsemble) Name() string { return m.name }

// PredictFraudProbability averages the leaf values reached in each tree.
func (m *TreeEnsemble) PredictFraudProbability(v features.Vector) (float64, error) {
	var sum float64
	for _, t := range m.trees {
		sum += t.eval(v)
	}
	return clamp01(sum / float64(len(m.trees))), nil
}

func (t tree) eval(v features.Vector) float64 {
	node := t.Nodes[0]
	// Depth is bounded by the node count; validated links cannot cycle
	// forever without revisiting, so cap traversal at len(Nodes).
	for steps := 0; steps < len(t.Nodes); steps++ {
		if node.Leaf {
			return node.Value
		}
		if v[node.Feature] <= node.Threshold {
			node = t.Nodes[node.Left]
		} else {
			node = t.Nodes[node.Right]
		}
	}
	return node.Value
}
