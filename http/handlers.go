package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"studentoutcome/db"
	"studentoutcome/ml"
	"studentoutcome/monitoring"
	"studentoutcome/schema"
)

const maxRunsLimit = 100

func (s *Server) registerHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/schema", s.handleSchema)
	mux.HandleFunc("GET /api/model", s.handleModel)
	mux.HandleFunc("POST /api/predict", s.handlePredict)
	mux.HandleFunc("GET /api/training/runs", s.handleTrainingRuns)
	mux.Handle("GET /metrics", s.deps.Metrics.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SchemaInfo 表单字段目录
type SchemaInfo struct {
	Version     int              `json:"version"`
	Fingerprint string           `json:"fingerprint"`
	Features    []schema.Feature `json:"features"`
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, SchemaInfo{
		Version:     s.deps.Schema.Version,
		Fingerprint: s.deps.Schema.Fingerprint(),
		Features:    s.deps.Schema.Features,
	})
}

// ModelInfo 模型元数据
type ModelInfo struct {
	ModelType          string            `json:"model_type"`
	CreatedAt          time.Time         `json:"created_at"`
	Classes            []string          `json:"classes"`
	Features           []string          `json:"features"`
	CategoricalColumns []string          `json:"categorical_columns"`
	Fingerprint        string            `json:"fingerprint"`
	Params             ml.TrainingParams `json:"params"`
	Dataset            ml.DatasetInfo    `json:"dataset"`
	Metrics            *ml.Report        `json:"metrics,omitempty"`
	// SchemaOrder is false when the form lists the features in another order
	// than the bundle; predictions always use the bundle order.
	SchemaOrder bool            `json:"schema_order"`
	LatestRun   *db.TrainingRun `json:"latest_run,omitempty"`
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	b := s.deps.Bundles.Bundle()
	respondJSON(w, http.StatusOK, ModelInfo{
		ModelType:          b.Classifier.Name(),
		CreatedAt:          b.CreatedAt,
		Classes:            b.Classes(),
		Features:           b.FeatureNames,
		CategoricalColumns: b.CategoricalColumns,
		Fingerprint:        b.Fingerprint,
		Params:             b.Params,
		Dataset:            b.Dataset,
		Metrics:            b.Metrics,
		SchemaOrder:        b.Fingerprint == s.deps.Schema.Fingerprint(),
		LatestRun:          s.latestRun(),
	})
}

// latestRun 最近一次训练记录，历史未配置或为空时返回nil
func (s *Server) latestRun() *db.TrainingRun {
	if s.deps.Runs == nil {
		return nil
	}
	run, err := s.deps.Runs.LatestRun()
	if err != nil {
		if !db.IsNotFound(err) {
			s.logger.Warn("read latest training run", zap.Error(err))
		}
		return nil
	}
	return run
}

// PredictRequest 预测请求体
type PredictRequest struct {
	Features map[string]any `json:"features"`
}

// PredictResponse 预测响应
type PredictResponse struct {
	Label         string                `json:"label"`
	Severity      string                `json:"severity"`
	Probabilities []ml.ClassProbability `json:"probabilities"`
	Cached        bool                  `json:"cached"`
	RequestID     string                `json:"request_id,omitempty"`
}

// Severity hints for the UI.
const (
	SeverityDanger  = "danger"
	SeveritySuccess = "success"
	SeverityWarning = "warning"
)

func severityFor(label string) string {
	switch label {
	case "Dropout":
		return SeverityDanger
	case "Graduate":
		return SeveritySuccess
	default:
		return SeverityWarning
	}
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := GetRequestID(r.Context())

	var req PredictRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "request body too large", nil)
			return
		}
		respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), nil)
		return
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "request body must contain a single JSON object", nil)
		return
	}
	if req.Features == nil {
		respondError(w, http.StatusBadRequest, `body must contain a "features" object`, nil)
		return
	}

	// 先按表单约束校验，再交给模型
	if err := s.deps.Schema.ValidateInput(req.Features); err != nil {
		s.rejectPrediction(w, err, requestID, start)
		return
	}

	prediction, cached, err := s.deps.Predictor.Predict(req.Features)
	if err != nil {
		s.rejectPrediction(w, err, requestID, start)
		return
	}

	s.deps.Metrics.ObservePrediction(prediction.Label, monitoring.OutcomeOK, cached, time.Since(start))
	respondJSON(w, http.StatusOK, PredictResponse{
		Label:         prediction.Label,
		Severity:      severityFor(prediction.Label),
		Probabilities: prediction.Probabilities,
		Cached:        cached,
		RequestID:     requestID,
	})
}

func (s *Server) rejectPrediction(w http.ResponseWriter, err error, requestID string, start time.Time) {
	var schemaErr *ml.SchemaError
	if errors.As(err, &schemaErr) {
		s.deps.Metrics.ObservePrediction("", monitoring.OutcomeSchemaError, false, time.Since(start))
		respondError(w, http.StatusUnprocessableEntity, schemaErr.Error(), schemaErr)
		return
	}
	s.deps.Metrics.ObservePrediction("", monitoring.OutcomeError, false, time.Since(start))
	s.logger.Error("prediction failed", zap.String("request_id", requestID), zap.Error(err))
	respondError(w, http.StatusInternalServerError, "prediction failed", nil)
}

func (s *Server) handleTrainingRuns(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		respondError(w, http.StatusServiceUnavailable, "training history is not configured", nil)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer", nil)
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := s.deps.Runs.ListRuns(limit)
	if err != nil {
		s.logger.Error("list training runs", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to read training history", nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// errorBody 错误响应体
type errorBody struct {
	Error  string          `json:"error"`
	Schema *ml.SchemaError `json:"schema,omitempty"`
}

func respondError(w http.ResponseWriter, status int, message string, schemaErr *ml.SchemaError) {
	respondJSON(w, status, errorBody{Error: message, Schema: schemaErr})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode JSON response", zap.Error(err))
	}
}
