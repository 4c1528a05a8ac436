package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-conduct/internal/response"
	"github.com/stemsi/exam-conduct/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Error *response.ErrorBody `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) response.ErrCode {
	t.Helper()
	var body envelope
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	if body.Error == nil {
		return ""
	}
	return body.Error.Code
}

func TestFailService(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   response.ErrCode
	}{
		{service.ErrNotFound, http.StatusNotFound, response.ErrNotFound},
		{fmt.Errorf("assemble: %w", service.ErrConfiguration), http.StatusUnprocessableEntity, response.ErrExamConfiguration},
		{service.ErrTestRunNoLiveEvents, http.StatusConflict, response.ErrTestRunNoLiveEvents},
		{service.ErrStudentExamExists, http.StatusConflict, response.ErrStudentExamExists},
		{fmt.Errorf("%w: %q", service.ErrInvalidSubnet, "x"), http.StatusBadRequest, response.ErrInvalidSubnet},
		{errors.New("connection reset"), http.StatusInternalServerError, response.ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			failService(c, zerolog.Nop(), tt.err, "failed")

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if code := decodeError(t, w); code != tt.wantCode {
				t.Fatalf("code = %s, want %s", code, tt.wantCode)
			}
		})
	}
}

func TestPathParams(t *testing.T) {
	r := gin.New()
	r.GET("/exams/:exam_id/student-exams/:id", func(c *gin.Context) {
		if _, ok := examIDParam(c); !ok {
			return
		}
		if _, ok := int64Param(c, "id"); !ok {
			return
		}
		c.Status(http.StatusNoContent)
	})

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/exams/6f1c2a7e-3b0d-4f5e-9a51-0c8d2e4b7a10/student-exams/42", http.StatusNoContent},
		{"/exams/not-a-uuid/student-exams/42", http.StatusBadRequest},
		{"/exams/6f1c2a7e-3b0d-4f5e-9a51-0c8d2e4b7a10/student-exams/abc", http.StatusBadRequest},
		{"/exams/6f1c2a7e-3b0d-4f5e-9a51-0c8d2e4b7a10/student-exams/0", http.StatusBadRequest},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if w.Code != tt.wantStatus {
			t.Errorf("%s: status = %d, want %d", tt.path, w.Code, tt.wantStatus)
		}
	}
}

func TestSuspiciousSessionsRequiresCriteria(t *testing.T) {
	h := NewSuspiciousSessionHandler(nil, zerolog.Nop())
	r := gin.New()
	r.GET("/exams/:exam_id/suspicious-sessions", h.Analyze)

	tests := []struct {
		query    string
		wantCode response.ErrCode
	}{
		{"", response.ErrNoAnalysisCriteria},
		{"?same_ip=false", response.ErrNoAnalysisCriteria},
		{"?ip_outside_subnet=true&subnet=not-a-cidr", response.ErrValidation},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
			"/exams/6f1c2a7e-3b0d-4f5e-9a51-0c8d2e4b7a10/suspicious-sessions"+tt.query, nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%q: status = %d, want 400", tt.query, w.Code)
		}
		if code := decodeError(t, w); code != tt.wantCode {
			t.Errorf("%q: code = %s, want %s", tt.query, code, tt.wantCode)
		}
	}
}

func TestDecodeLiveEvent(t *testing.T) {
	event, err := decodeLiveEvent(`{"type":"live_event","data":{"id":5,"exam_id":"6f1c2a7e-3b0d-4f5e-9a51-0c8d2e4b7a10","student_exam_id":12,"event_type":"examAttendanceCheck","payload":{"message":"hadir?"},"created_at":"2026-01-02T08:00:00Z"}}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.ID != 5 || !event.VisibleTo(12) || event.VisibleTo(13) {
		t.Fatalf("unexpected event %+v", event)
	}

	global, err := decodeLiveEvent(`{"type":"live_event","data":{"id":6,"exam_id":"6f1c2a7e-3b0d-4f5e-9a51-0c8d2e4b7a10","student_exam_id":null,"event_type":"examWideAnnouncement","payload":{"text":"mulai"},"created_at":"2026-01-02T08:00:00Z"}}`)
	if err != nil {
		t.Fatalf("decode global: %v", err)
	}
	if !global.IsGlobal() || !global.VisibleTo(99) {
		t.Fatalf("global event not visible to every student exam: %+v", global)
	}

	alert, err := decodeLiveEvent(`{"type":"integrity_alert","data":{"exam_id":"6f1c2a7e-3b0d-4f5e-9a51-0c8d2e4b7a10"}}`)
	if err != nil || alert != nil {
		t.Fatalf("integrity alert should be skipped, got %+v, %v", alert, err)
	}

	if _, err := decodeLiveEvent(`{not json`); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
