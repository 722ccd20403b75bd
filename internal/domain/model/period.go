package model

// ArticlePeriod bounds a span of a page's history for quality comparison.
type ArticlePeriod struct {
	PageID     int64
	StartRevID int64
	EndRevID   int64
}

// QualityScore is a class prediction with its probability distribution.
type QualityScore struct {
	Prediction    string
	Probabilities map[string]float64
}

// QualityRecord is one output row of the quality-scores utility.
type QualityRecord struct {
	PageID          int64
	PrevRevID       int64
	PrevPrediction  string
	PrevWeightedSum float64
	EndRevID        int64
	EndPrediction   string
	EndWeightedSum  float64
}
