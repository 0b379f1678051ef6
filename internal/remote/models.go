package remote

import "github.com/anime-shed/pixelcheck-go/internal/analyzer"

// Status is reported to the caller of Analyze as the job progresses.
type Status string

const (
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"

	// StatusFailed is never emitted by Analyze; callers report it when Analyze
	// returns an error.
	StatusFailed Status = "failed"
)

// StatusFunc receives status transitions. It may be nil.
type StatusFunc func(Status)

// UploadResponse is returned by the upload endpoint.
type UploadResponse struct {
	ImageID string `json:"imageId"`
	Status  string `json:"status"`
}

// FeatureScores are the per-feature scores computed by the remote model.
type FeatureScores struct {
	ColorScore        float64 `json:"color_score"`
	NoiseScore        float64 `json:"noise_score"`
	SymmetryScore     float64 `json:"symmetry_score"`
	WatermarkScore    float64 `json:"watermark_score"`
	TransparencyScore float64 `json:"transparency_score"`
}

// Observations are the model's textual notes per feature.
type Observations struct {
	Noise        string `json:"noise"`
	Colors       string `json:"colors"`
	Symmetry     string `json:"symmetry"`
	Watermark    string `json:"watermark"`
	Transparency string `json:"transparency"`
}

// Metrics is one evaluation split of the remote model.
type Metrics struct {
	F1   float64 `json:"f1"`
	Acc  float64 `json:"acc"`
	AUC  float64 `json:"auc"`
	Loss float64 `json:"loss"`
}

// ModelMetadata describes how the remote model was trained.
type ModelMetadata struct {
	Notes       string   `json:"notes"`
	Classes     []string `json:"classes"`
	BestValF1   float64  `json:"best_val_f1"`
	BestValAUC  float64  `json:"best_val_auc"`
	AIClassIdx  int      `json:"ai_class_index"`
	ValMetrics  Metrics  `json:"val_metrics"`
	TestMetrics Metrics  `json:"test_metrics"`
	Hyperparams struct {
		LR          float64 `json:"lr"`
		Epochs      int     `json:"epochs"`
		BatchSize   int     `json:"batch_size"`
		WeightDecay float64 `json:"weight_decay"`
	} `json:"hyperparams"`
}

type Details struct {
	ProbAI       float64       `json:"prob_ai"`
	ProbReal     float64       `json:"prob_real"`
	Threshold    float64       `json:"threshold"`
	Features     FeatureScores `json:"features"`
	Observations Observations  `json:"observations"`
	ModelVersion string        `json:"model_version"`
	Metadata     ModelMetadata `json:"metadata"`
}

// Result is a completed remote analysis.
type Result struct {
	ImageID      string  `json:"imageId"`
	Label        string  `json:"label"`
	Confidence   float64 `json:"confidence"`
	ModelVersion string  `json:"modelVersion"`
	Details      Details `json:"details"`
	ReportID     *string `json:"reportId"`
}

// DefaultThreshold applies when the remote omits one.
const DefaultThreshold = 0.5

// Classification maps the remote verdict onto a binary classification.
func (r *Result) Classification() analyzer.Classification {
	threshold := r.Details.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	version := r.ModelVersion
	if version == "" {
		version = r.Details.ModelVersion
	}
	return analyzer.ClassifyBinary(r.Details.ProbAI, threshold, version)
}
