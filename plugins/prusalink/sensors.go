package prusalink

import (
	"time"

	"github.com/joshp123/printmon/internal/host"
)

const (
	unitCelsius    = "°C"
	unitPercent    = "%"
	unitMillimeter = "mm"

	deviceClassEnum        = "enum"
	deviceClassTemperature = "temperature"
	deviceClassDistance    = "distance"
	deviceClassTimestamp   = "timestamp"

	stateClassMeasurement = "measurement"

	timestampTolerance = 2 * time.Minute
)

// SensorDescription binds static entity metadata to value extraction from
// one coordinator payload. A nil Available means always available.
type SensorDescription[T any] struct {
	host.EntityDescription
	Value     func(T) any
	Available func(T) bool
}

func (d SensorDescription[T]) available(data T) bool {
	return d.Available == nil || d.Available(data)
}

// StateValue reduces the state flags to one value; the first set flag of
// pausing, cancelling, paused, printing wins.
func StateValue(flags StateFlags) string {
	switch {
	case flags.Pausing:
		return "pausing"
	case flags.Cancelling:
		return "cancelling"
	case flags.Paused:
		return "paused"
	case flags.Printing:
		return "printing"
	default:
		return "idle"
	}
}

func PrinterSensors() []SensorDescription[PrinterInfo] {
	return []SensorDescription[PrinterInfo]{
		{
			EntityDescription: host.EntityDescription{
				Key:              "printer.state",
				Name:             "State",
				Icon:             "mdi:printer-3d",
				DeviceClass:      deviceClassEnum,
				Options:          []string{"cancelling", "idle", "paused", "pausing", "printing"},
				EnabledByDefault: true,
			},
			Value: func(info PrinterInfo) any { return StateValue(info.State.Flags) },
		},
		floatTelemetry("temp-bed", "Heatbed", unitCelsius, deviceClassTemperature, "", func(t Telemetry) *float64 { return t.TempBed }),
		floatTelemetry("temp-nozzle", "Nozzle Temperature", unitCelsius, deviceClassTemperature, "", func(t Telemetry) *float64 { return t.TempNozzle }),
		floatTelemetry("z-height", "Z-Height", unitMillimeter, deviceClassDistance, "mdi:format-vertical-align-top", func(t Telemetry) *float64 { return t.ZHeight }),
		floatTelemetry("print-speed", "Print Speed", unitPercent, "", "mdi:speedometer", func(t Telemetry) *float64 { return t.PrintSpeed }),
		{
			EntityDescription: host.EntityDescription{
				Key:  "printer.telemetry.material",
				Name: "Material",
				Icon: "mdi:printer-3d-nozzle",
			},
			Value: func(info PrinterInfo) any {
				if info.Telemetry.Material == nil {
					return nil
				}
				return *info.Telemetry.Material
			},
			Available: func(info PrinterInfo) bool { return info.Telemetry.Material != nil },
		},
	}
}

func floatTelemetry(name, display, unit, deviceClass, icon string, field func(Telemetry) *float64) SensorDescription[PrinterInfo] {
	return SensorDescription[PrinterInfo]{
		EntityDescription: host.EntityDescription{
			Key:         "printer.telemetry." + name,
			Name:        display,
			Icon:        icon,
			Unit:        unit,
			DeviceClass: deviceClass,
			StateClass:  stateClassMeasurement,
		},
		Value: func(info PrinterInfo) any {
			v := field(info.Telemetry)
			if v == nil {
				return nil
			}
			return *v
		},
		Available: func(info PrinterInfo) bool { return field(info.Telemetry) != nil },
	}
}

// JobSensors builds the job sensors. Every call returns fresh timestamp
// filters, so each entity keeps its own.
func JobSensors(now func() time.Time) []SensorDescription[JobInfo] {
	if now == nil {
		now = time.Now
	}
	hasProgress := func(info JobInfo) bool { return info.Progress != nil }

	start := newVarianceFilter(timestampTolerance)
	finish := newVarianceFilter(timestampTolerance)

	return []SensorDescription[JobInfo]{
		{
			EntityDescription: host.EntityDescription{
				Key:              "job.progress",
				Name:             "Progress",
				Icon:             "mdi:progress-clock",
				Unit:             unitPercent,
				EnabledByDefault: true,
			},
			Value: func(info JobInfo) any {
				if info.Progress == nil {
					return nil
				}
				return info.Progress.Completion * 100
			},
			Available: hasProgress,
		},
		{
			EntityDescription: host.EntityDescription{
				Key:              "job.filename",
				Name:             "Filename",
				Icon:             "mdi:file-image-outline",
				EnabledByDefault: true,
			},
			Value: func(info JobInfo) any {
				if info.Job == nil {
					return nil
				}
				return info.Job.File.Display
			},
			Available: func(info JobInfo) bool { return info.Job != nil },
		},
		{
			EntityDescription: host.EntityDescription{
				Key:              "job.start",
				Name:             "Print Start",
				Icon:             "mdi:clock-start",
				DeviceClass:      deviceClassTimestamp,
				EnabledByDefault: true,
			},
			Value: func(info JobInfo) any {
				if info.Progress == nil {
					return nil
				}
				return start.apply(now().UTC().Add(-seconds(info.Progress.PrintTime)))
			},
			Available: hasProgress,
		},
		{
			EntityDescription: host.EntityDescription{
				Key:              "job.finish",
				Name:             "Print Finish",
				Icon:             "mdi:clock-end",
				DeviceClass:      deviceClassTimestamp,
				EnabledByDefault: true,
			},
			Value: func(info JobInfo) any {
				if info.Progress == nil {
					return nil
				}
				return finish.apply(now().UTC().Add(seconds(info.Progress.PrintTimeLeft)))
			},
			Available: hasProgress,
		},
	}
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
