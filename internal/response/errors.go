package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrPermissionDenied  ErrCode = "PERMISSION_DENIED"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Exam conduct ──────────────────────────────────────────────────
	ErrExamConfiguration   ErrCode = "EXAM_CONFIGURATION_INVALID"
	ErrTestRunNoLiveEvents ErrCode = "TEST_RUN_NO_LIVE_EVENTS"
	ErrInvalidWorkingTime  ErrCode = "INVALID_WORKING_TIME"
	ErrExerciseNotInExam   ErrCode = "EXERCISE_NOT_IN_EXAM"
	ErrUserNotRegistered   ErrCode = "USER_NOT_REGISTERED"
	ErrStudentExamExists   ErrCode = "STUDENT_EXAM_EXISTS"
	ErrInvalidSubnet       ErrCode = "INVALID_IP_SUBNET"
	ErrNoAnalysisCriteria  ErrCode = "NO_ANALYSIS_CRITERIA"

	// ─── Server ────────────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"
	ErrInternal          ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrPermissionDenied:
		return "Izin ditolak."
	case ErrStudentAccessOnly:
		return "Sumber daya ini terbatas untuk siswa."
	case ErrAdminAccessOnly:
		return "Sumber daya ini terbatas untuk administrator."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."
	case ErrConflict:
		return "Sumber daya sudah ada."

	// ─── Exam conduct ──────────────────────────────────────────────────
	case ErrExamConfiguration:
		return "Konfigurasi ujian tidak valid untuk menyusun ujian siswa."
	case ErrTestRunNoLiveEvents:
		return "Uji coba ujian tidak memiliki acara langsung."
	case ErrInvalidWorkingTime:
		return "Waktu pengerjaan harus lebih dari nol."
	case ErrExerciseNotInExam:
		return "Soal tidak termasuk dalam ujian ini."
	case ErrUserNotRegistered:
		return "Pengguna tidak terdaftar pada ujian ini."
	case ErrStudentExamExists:
		return "Pengguna sudah memiliki ujian siswa untuk ujian ini."
	case ErrInvalidSubnet:
		return "Subnet IP tidak valid atau tidak diberikan."
	case ErrNoAnalysisCriteria:
		return "Pilih setidaknya satu kriteria analisis."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
