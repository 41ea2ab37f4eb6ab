package prusalink

// VersionInfo is the body of GET /api/version.
type VersionInfo struct {
	API      string `json:"api"`
	Server   string `json:"server"`
	Text     string `json:"text"`
	Hostname string `json:"hostname"`
	Original string `json:"original,omitempty"`
}

// PrinterInfo is the body of GET /api/printer.
type PrinterInfo struct {
	Telemetry   Telemetry    `json:"telemetry"`
	Temperature Temperatures `json:"temperature"`
	State       PrinterState `json:"state"`
}

// Telemetry values are optional; firmware omits what it does not report.
type Telemetry struct {
	TempBed    *float64 `json:"temp-bed"`
	TempNozzle *float64 `json:"temp-nozzle"`
	PrintSpeed *float64 `json:"print-speed"`
	ZHeight    *float64 `json:"z-height"`
	Material   *string  `json:"material"`
}

type Temperatures struct {
	Tool0 *TemperatureReading `json:"tool0"`
	Bed   *TemperatureReading `json:"bed"`
}

type TemperatureReading struct {
	Actual float64 `json:"actual"`
	Target float64 `json:"target"`
	Offset float64 `json:"offset"`
}

type PrinterState struct {
	Text  string     `json:"text"`
	Flags StateFlags `json:"flags"`
}

type StateFlags struct {
	Operational   bool `json:"operational"`
	Paused        bool `json:"paused"`
	Printing      bool `json:"printing"`
	Cancelling    bool `json:"cancelling"`
	Pausing       bool `json:"pausing"`
	Error         bool `json:"error"`
	SDReady       bool `json:"sdReady"`
	ClosedOrError bool `json:"closedOrError"`
	Ready         bool `json:"ready"`
	Busy          bool `json:"busy"`
}

// JobInfo is the body of GET /api/job. Job and Progress are nil when no job
// is active.
type JobInfo struct {
	State    string    `json:"state"`
	Job      *Job      `json:"job"`
	Progress *Progress `json:"progress"`
}

type Job struct {
	EstimatedPrintTime *float64 `json:"estimatedPrintTime"`
	File               JobFile  `json:"file"`
}

type JobFile struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Display string `json:"display"`
	Size    *int64 `json:"size"`
}

type Progress struct {
	Completion    float64 `json:"completion"`
	PrintTime     float64 `json:"printTime"`
	PrintTimeLeft float64 `json:"printTimeLeft"`
}
