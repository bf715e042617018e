// Package service defines the interfaces shared between pipeline stages.
package service

import (
	"context"

	"github.com/Veraticus/click-thru/internal/model"
)

// TableSource loads the email, opened and clicked tables.
type TableSource interface {
	LoadTables(ctx context.Context) (*model.Dataset, error)
}

// Classifier is a binary or multi-class model over dense feature rows.
type Classifier interface {
	Fit(ctx context.Context, x [][]float64, y []int) error
	Predict(x []float64) int
}

// ClassifierFactory builds an untrained classifier for one hyperparameter value.
type ClassifierFactory func(param int) Classifier

// DecisionFunc decides whether the training stage should run.
type DecisionFunc func(ctx context.Context) (bool, error)
