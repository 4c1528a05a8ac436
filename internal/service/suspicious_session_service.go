package service

import (
	"cmp"
	"context"
	"fmt"
	"net/netip"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-conduct/internal/model"
)

// SuspiciousSessionService scans all sessions of an exam for signs that
// students shared a device or that a student switched devices.
type SuspiciousSessionService struct {
	definitions   ExamDefinitionStore
	sessions      ExamSessionStore
	defaultSubnet string
	log           zerolog.Logger
}

// NewSuspiciousSessionService creates a new SuspiciousSessionService.
// defaultSubnet is used by the IP range check when a request names none.
func NewSuspiciousSessionService(
	definitions ExamDefinitionStore,
	sessions ExamSessionStore,
	defaultSubnet string,
	log zerolog.Logger,
) *SuspiciousSessionService {
	return &SuspiciousSessionService{
		definitions:   definitions,
		sessions:      sessions,
		defaultSubnet: defaultSubnet,
		log:           log.With().Str("component", "suspicious_session_service").Logger(),
	}
}

// Analyze returns the groups of sessions flagged by the enabled checks.
func (s *SuspiciousSessionService) Analyze(ctx context.Context, examID uuid.UUID, opts model.AnalysisOptions) ([]model.SuspiciousSessions, error) {
	var subnet netip.Prefix
	if opts.IPOutsideSubnet {
		cidr := opts.Subnet
		if cidr == "" {
			cidr = s.defaultSubnet
		}
		p, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSubnet, cidr)
		}
		subnet = p.Masked()
	}

	exists, err := s.definitions.Exists(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("check exam: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	sessions, err := s.sessions.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	groups := analyzeSessions(sessions, opts, subnet)
	s.log.Debug().
		Str("exam_id", examID.String()).
		Int("sessions", len(sessions)).
		Int("groups", len(groups)).
		Msg("Suspicious session analysis finished")
	return groups, nil
}

func analyzeSessions(sessions []model.ExamSession, opts model.AnalysisOptions, subnet netip.Prefix) []model.SuspiciousSessions {
	distinct := distinctSessions(sessions)
	a := &analysis{groups: []model.SuspiciousSessions{}}

	sameIP := opts.SameIPAcrossStudentExams
	sameFP := opts.SameFingerprintAcrossStudentExams
	if sameIP && sameFP {
		a.crossStudentExams(distinct, func(x, y *model.ExamSession) bool {
			return equalPresent(x.IPAddress, y.IPAddress) && equalPresent(x.FingerprintHash, y.FingerprintHash)
		}, model.ReasonDifferentStudentExamsSameIP, model.ReasonDifferentStudentExamsSameFingerprint)
	}
	if sameFP {
		a.crossStudentExams(distinct, func(x, y *model.ExamSession) bool {
			return equalPresent(x.FingerprintHash, y.FingerprintHash)
		}, model.ReasonDifferentStudentExamsSameFingerprint)
	}
	if sameIP {
		a.crossStudentExams(distinct, func(x, y *model.ExamSession) bool {
			return equalPresent(x.IPAddress, y.IPAddress)
		}, model.ReasonDifferentStudentExamsSameIP)
	}

	if opts.DifferentIPsInStudentExam || opts.DifferentFingerprintsInStudentExam {
		a.withinStudentExams(distinct, opts.DifferentIPsInStudentExam, opts.DifferentFingerprintsInStudentExam)
	}

	if opts.IPOutsideSubnet && subnet.IsValid() {
		a.outsideSubnet(distinct, subnet)
	}

	return a.groups
}

type analysis struct {
	groups []model.SuspiciousSessions
}

// crossStudentExams groups every session with the sessions of other student
// exams it matches, keeping one session per student exam.
func (a *analysis) crossStudentExams(sessions []model.ExamSession, match func(x, y *model.ExamSession) bool, reasons ...model.SuspiciousReason) {
	for i := range sessions {
		s := &sessions[i]
		group := []model.ExamSession{*s}
		seen := map[int64]bool{s.StudentExamID: true}
		for j := range sessions {
			t := &sessions[j]
			if seen[t.StudentExamID] || !match(s, t) {
				continue
			}
			seen[t.StudentExamID] = true
			group = append(group, *t)
		}
		if len(group) < 2 {
			continue
		}
		a.add(group, reasons)
	}
}

// withinStudentExams flags student exams whose sessions came from different
// IP addresses or browsers. A missing value counts as a distinct value.
func (a *analysis) withinStudentExams(sessions []model.ExamSession, diffIP, diffFP bool) {
	var order []int64
	byStudentExam := map[int64][]model.ExamSession{}
	for _, s := range sessions {
		if _, ok := byStudentExam[s.StudentExamID]; !ok {
			order = append(order, s.StudentExamID)
		}
		byStudentExam[s.StudentExamID] = append(byStudentExam[s.StudentExamID], s)
	}

	for _, id := range order {
		list := byStudentExam[id]
		flagged := map[int64]bool{}
		var reasons []model.SuspiciousReason
		for i := range list {
			for j := i + 1; j < len(list); j++ {
				if diffIP && list[i].IPAddress != list[j].IPAddress {
					flagged[list[i].ID], flagged[list[j].ID] = true, true
					reasons = appendReason(reasons, model.ReasonSameStudentExamDifferentIPs)
				}
				if diffFP && list[i].FingerprintHash != list[j].FingerprintHash {
					flagged[list[i].ID], flagged[list[j].ID] = true, true
					reasons = appendReason(reasons, model.ReasonSameStudentExamDifferentFingerprints)
				}
			}
		}
		if len(flagged) == 0 {
			continue
		}

		group := make([]model.ExamSession, 0, len(flagged))
		for _, s := range list {
			if flagged[s.ID] {
				group = append(group, s)
			}
		}
		a.add(group, reasons)
	}
}

// outsideSubnet flags sessions whose IP address lies outside subnet. Sessions
// without a parseable address, or of the other IP family, cannot be judged.
func (a *analysis) outsideSubnet(sessions []model.ExamSession, subnet netip.Prefix) {
	var group []model.ExamSession
	for _, s := range sessions {
		if !s.IPAddress.Valid {
			continue
		}
		addr, err := netip.ParseAddr(s.IPAddress.String)
		if err != nil {
			continue
		}
		addr = addr.Unmap().WithZone("")
		if addr.Is4() != subnet.Addr().Is4() {
			continue
		}
		if !subnet.Contains(addr) {
			group = append(group, s)
		}
	}
	if len(group) > 0 {
		a.add(group, []model.SuspiciousReason{model.ReasonIPOutsideOfRange})
	}
}

// add records a group unless an earlier group already covers its sessions.
func (a *analysis) add(group []model.ExamSession, reasons []model.SuspiciousReason) {
	for _, g := range a.groups {
		if containsAll(g.Sessions, group) {
			return
		}
	}
	slices.SortFunc(group, func(x, y model.ExamSession) int {
		return cmp.Compare(x.ID, y.ID)
	})
	a.groups = append(a.groups, model.SuspiciousSessions{
		Reasons:  slices.Clone(reasons),
		Sessions: group,
	})
}

// distinctSessions drops sessions that repeat an earlier session of the same
// student exam with identical fingerprint, IP address and user agent.
func distinctSessions(sessions []model.ExamSession) []model.ExamSession {
	sorted := slices.Clone(sessions)
	slices.SortFunc(sorted, func(x, y model.ExamSession) int {
		return cmp.Compare(x.ID, y.ID)
	})

	type sessionKey struct {
		studentExamID int64
		fingerprint   pgtype.Text
		ip            pgtype.Text
		userAgent     pgtype.Text
	}

	seen := make(map[sessionKey]bool, len(sorted))
	out := make([]model.ExamSession, 0, len(sorted))
	for _, s := range sorted {
		k := sessionKey{s.StudentExamID, s.FingerprintHash, s.IPAddress, s.UserAgent}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}

func containsAll(have, want []model.ExamSession) bool {
	ids := make(map[int64]bool, len(have))
	for _, s := range have {
		ids[s.ID] = true
	}
	for _, s := range want {
		if !ids[s.ID] {
			return false
		}
	}
	return true
}

func equalPresent(x, y pgtype.Text) bool {
	return x.Valid && y.Valid && x.String == y.String
}

func appendReason(reasons []model.SuspiciousReason, r model.SuspiciousReason) []model.SuspiciousReason {
	if slices.Contains(reasons, r) {
		return reasons
	}
	return append(reasons, r)
}
