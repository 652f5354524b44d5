package recon

// RunStatus is the lifecycle of one panel generation's reconciliation.
type RunStatus string

const (
	RunUploaded    RunStatus = "uploaded"
	RunReconciling RunStatus = "reconciling"
	RunComplete    RunStatus = "complete"
	RunFailed      RunStatus = "failed"
)

// CanTransition reports whether from -> to moves forward in the lifecycle.
func (from RunStatus) CanTransition(to RunStatus) bool {
	switch from {
	case RunUploaded:
		return to == RunReconciling || to == RunFailed
	case RunReconciling:
		return to == RunComplete || to == RunFailed
	default:
		return false
	}
}

func (s RunStatus) Terminal() bool { return s == RunComplete || s == RunFailed }

type UploadStatus string

const (
	UploadSucceeded UploadStatus = "uploaded"
	UploadFailed    UploadStatus = "failed"
)

// Row categories. Custom SOTs use their own name as the category.
const (
	StatusInternal   = "internal"
	StatusService    = "service"
	StatusThirdParty = "thirdparty"
	StatusNotFound   = "not_found"
	StatusUnknown    = "unknown"

	FinalFound        = "found"
	FinalNotFoundInHR = "not_found_in_hr"
)

// Well known SOT names.
const (
	SOTHRData          = "hr_data"
	SOTServiceUsers    = "service_users"
	SOTInternalUsers   = "internal_users"
	SOTThirdPartyUsers = "thirdparty_users"
)
