package model

// Permission represents a string code for a specific system action.
type Permission string

const (
	// PermissionExamsConduct allows assembling student exams, creating test
	// runs, changing working time and posting live events.
	PermissionExamsConduct Permission = "exams:conduct"

	// PermissionExamsMonitor allows viewing session matches, suspicious
	// session analysis and the live monitor stream.
	PermissionExamsMonitor Permission = "exams:monitor"

	// PermissionExamsDelete allows tearing down an exam's conduct data.
	PermissionExamsDelete Permission = "exams:delete"
)

// AllPermissions is a slice of all available permissions.
var AllPermissions = []Permission{
	PermissionExamsConduct,
	PermissionExamsMonitor,
	PermissionExamsDelete,
}
