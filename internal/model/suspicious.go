package model

// SuspiciousReason names why a group of sessions was flagged.
type SuspiciousReason string

const (
	ReasonDifferentStudentExamsSameIP          SuspiciousReason = "DIFFERENT_STUDENT_EXAMS_SAME_IP_ADDRESS"
	ReasonDifferentStudentExamsSameFingerprint SuspiciousReason = "DIFFERENT_STUDENT_EXAMS_SAME_BROWSER_FINGERPRINT"
	ReasonSameStudentExamDifferentIPs          SuspiciousReason = "SAME_STUDENT_EXAM_DIFFERENT_IP_ADDRESSES"
	ReasonSameStudentExamDifferentFingerprints SuspiciousReason = "SAME_STUDENT_EXAM_DIFFERENT_BROWSER_FINGERPRINTS"
	ReasonIPOutsideOfRange                     SuspiciousReason = "IP_ADDRESS_OUTSIDE_OF_RANGE"
)

// AnalysisOptions toggles the individual checks of a suspicious session analysis.
type AnalysisOptions struct {
	SameIPAcrossStudentExams           bool   `form:"same_ip"`
	SameFingerprintAcrossStudentExams  bool   `form:"same_fingerprint"`
	DifferentIPsInStudentExam          bool   `form:"different_ips"`
	DifferentFingerprintsInStudentExam bool   `form:"different_fingerprints"`
	IPOutsideSubnet                    bool   `form:"ip_outside_subnet"`
	Subnet                             string `form:"subnet" binding:"omitempty,cidr"`
}

// Any reports whether at least one check is enabled.
func (o AnalysisOptions) Any() bool {
	return o.SameIPAcrossStudentExams || o.SameFingerprintAcrossStudentExams ||
		o.DifferentIPsInStudentExam || o.DifferentFingerprintsInStudentExam ||
		o.IPOutsideSubnet
}

// SuspiciousSessions is a group of sessions flagged together.
type SuspiciousSessions struct {
	Reasons  []SuspiciousReason `json:"reasons"`
	Sessions []ExamSession      `json:"sessions"`
}
