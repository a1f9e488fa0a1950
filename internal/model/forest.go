package model

import (
	"math"
	"math/rand"
	"sort"
)

// ForestConfig holds fixed training hyperparameters. They are configuration,
// not runtime-tuned.
type ForestConfig struct {
	Trees           int
	MaxDepth        int
	MinSamplesSplit int
	Seed            int64
}

// Forest is a bagged ensemble of binary CART trees. All fields are exported
// for JSON persistence inside the model artifact.
type Forest struct {
	Trees       []*Node `json:"trees"`
	NumFeatures int     `json:"num_features"`
}

// Node is one tree node. Leaf nodes carry the majority class and the class-1
// fraction seen in training samples that reached them.
type Node struct {
	Feature   int     `json:"f,omitempty"`
	Threshold float64 `json:"t,omitempty"`
	Left      *Node   `json:"l,omitempty"`
	Right     *Node   `json:"r,omitempty"`
	Leaf      bool    `json:"leaf,omitempty"`
	Class     int     `json:"c,omitempty"`
	ProbUp    float64 `json:"p,omitempty"`
}

// TrainForest fits a forest on labeled feature vectors. Training is fully
// deterministic for a given seed: bootstrap draws and feature subsampling
// come from one seeded source.
func TrainForest(features [][]float64, labels []int, cfg ForestConfig) *Forest {
	rng := rand.New(rand.NewSource(cfg.Seed))
	n := len(features)
	numFeatures := len(features[0])
	// sqrt(p) candidate features per split, the usual bagging default
	mtry := int(math.Sqrt(float64(numFeatures)))
	if mtry < 1 {
		mtry = 1
	}
	minSplit := cfg.MinSamplesSplit
	if minSplit < 2 {
		minSplit = 2
	}

	f := &Forest{NumFeatures: numFeatures}
	for t := 0; t < cfg.Trees; t++ {
		// bootstrap sample with replacement
		idx := make([]int, n)
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		root := growTree(features, labels, idx, 0, cfg.MaxDepth, minSplit, mtry, rng)
		f.Trees = append(f.Trees, root)
	}
	return f
}

// Predict returns the majority-vote class and the fraction of trees that
// voted for it, which serves as the confidence estimate.
func (f *Forest) Predict(vec []float64) (class int, confidence float64) {
	if len(f.Trees) == 0 {
		return 0, 0
	}
	up := 0
	for _, root := range f.Trees {
		if classify(root, vec) == 1 {
			up++
		}
	}
	total := len(f.Trees)
	if up*2 >= total {
		return 1, float64(up) / float64(total)
	}
	return 0, float64(total-up) / float64(total)
}

// Accuracy scores the forest against labeled holdout rows.
func (f *Forest) Accuracy(features [][]float64, labels []int) float64 {
	if len(features) == 0 {
		return 0
	}
	correct := 0
	for i, vec := range features {
		if cls, _ := f.Predict(vec); cls == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(features))
}

func classify(n *Node, vec []float64) int {
	for !n.Leaf {
		if vec[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Class
}

func growTree(features [][]float64, labels []int, idx []int, depth, maxDepth, minSplit, mtry int, rng *rand.Rand) *Node {
	ones := 0
	for _, i := range idx {
		ones += labels[i]
	}

	if depth >= maxDepth || len(idx) < minSplit || ones == 0 || ones == len(idx) {
		return leafNode(ones, len(idx))
	}

	feature, threshold, ok := bestSplit(features, labels, idx, mtry, rng)
	if !ok {
		return leafNode(ones, len(idx))
	}

	var left, right []int
	for _, i := range idx {
		if features[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return leafNode(ones, len(idx))
	}

	return &Node{
		Feature:   feature,
		Threshold: threshold,
		Left:      growTree(features, labels, left, depth+1, maxDepth, minSplit, mtry, rng),
		Right:     growTree(features, labels, right, depth+1, maxDepth, minSplit, mtry, rng),
	}
}

func leafNode(ones, total int) *Node {
	cls := 0
	if ones*2 >= total {
		cls = 1
	}
	prob := 0.0
	if total > 0 {
		prob = float64(ones) / float64(total)
	}
	return &Node{Leaf: true, Class: cls, ProbUp: prob}
}

// bestSplit scans a random feature subset for the Gini-optimal threshold.
// Candidates are midpoints between consecutive sorted sample values.
func bestSplit(features [][]float64, labels []int, idx []int, mtry int, rng *rand.Rand) (int, float64, bool) {
	numFeatures := len(features[idx[0]])
	perm := rng.Perm(numFeatures)[:mtry]

	bestGini := math.Inf(1)
	bestFeature, bestThreshold := -1, 0.0

	type valLabel struct {
		v float64
		y int
	}
	totalOnes := 0
	for _, i := range idx {
		totalOnes += labels[i]
	}
	n := len(idx)

	for _, feat := range perm {
		pairs := make([]valLabel, n)
		for k, i := range idx {
			pairs[k] = valLabel{features[i][feat], labels[i]}
		}
		sort.Slice(pairs, func(a, b int) bool { return pairs[a].v < pairs[b].v })

		leftOnes, leftCount := 0, 0
		for k := 0; k < n-1; k++ {
			leftOnes += pairs[k].y
			leftCount++
			if pairs[k].v == pairs[k+1].v {
				continue
			}
			rightOnes := totalOnes - leftOnes
			rightCount := n - leftCount

			g := weightedGini(leftOnes, leftCount, rightOnes, rightCount)
			if g < bestGini {
				bestGini = g
				bestFeature = feat
				bestThreshold = (pairs[k].v + pairs[k+1].v) / 2
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

func weightedGini(leftOnes, leftCount, rightOnes, rightCount int) float64 {
	total := float64(leftCount + rightCount)
	return gini(leftOnes, leftCount)*float64(leftCount)/total +
		gini(rightOnes, rightCount)*float64(rightCount)/total
}

func gini(ones, count int) float64 {
	if count == 0 {
		return 0
	}
	p := float64(ones) / float64(count)
	return 2 * p * (1 - p)
}
