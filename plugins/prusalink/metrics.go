package prusalink

import (
	"github.com/prometheus/client_golang/prometheus"
)

var printerStates = []string{"cancelling", "idle", "paused", "pausing", "printing"}

// MetricsCollector exports the last polled payloads. It never calls the
// printer itself. Payload metrics are emitted only while the printer
// reports the value.
type MetricsCollector struct {
	printer *updateCoordinator[PrinterInfo]
	job     *updateCoordinator[JobInfo]

	printerState   *prometheus.Desc
	bedTempC       *prometheus.Desc
	bedTargetC     *prometheus.Desc
	nozzleTempC    *prometheus.Desc
	nozzleTargetC  *prometheus.Desc
	zHeightMM      *prometheus.Desc
	printSpeedPct  *prometheus.Desc
	jobActive      *prometheus.Desc
	progressPct    *prometheus.Desc
	printTimeS     *prometheus.Desc
	printTimeLeftS *prometheus.Desc

	updateSuccess   *prometheus.GaugeVec
	lastSuccess     *prometheus.GaugeVec
	intervalSeconds *prometheus.GaugeVec
}

func newMetricsCollector(printer *updateCoordinator[PrinterInfo], job *updateCoordinator[JobInfo]) *MetricsCollector {
	return &MetricsCollector{
		printer:        printer,
		job:            job,
		printerState:   prometheus.NewDesc("printmon_prusalink_printer_state", "Printer state (1 for the current state)", []string{"state"}, nil),
		bedTempC:       prometheus.NewDesc("printmon_prusalink_bed_temperature_celsius", "Heatbed temperature", nil, nil),
		bedTargetC:     prometheus.NewDesc("printmon_prusalink_bed_target_celsius", "Heatbed target temperature", nil, nil),
		nozzleTempC:    prometheus.NewDesc("printmon_prusalink_nozzle_temperature_celsius", "Nozzle temperature", nil, nil),
		nozzleTargetC:  prometheus.NewDesc("printmon_prusalink_nozzle_target_celsius", "Nozzle target temperature", nil, nil),
		zHeightMM:      prometheus.NewDesc("printmon_prusalink_z_height_mm", "Z axis height in millimetres", nil, nil),
		printSpeedPct:  prometheus.NewDesc("printmon_prusalink_print_speed_percent", "Print speed multiplier in percent", nil, nil),
		jobActive:      prometheus.NewDesc("printmon_prusalink_job_active", "Whether a job is loaded (1) or not (0)", nil, nil),
		progressPct:    prometheus.NewDesc("printmon_prusalink_job_progress_percent", "Job completion in percent", nil, nil),
		printTimeS:     prometheus.NewDesc("printmon_prusalink_job_print_time_seconds", "Elapsed print time", nil, nil),
		printTimeLeftS: prometheus.NewDesc("printmon_prusalink_job_print_time_left_seconds", "Estimated remaining print time", nil, nil),
		updateSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "printmon_prusalink_update_success",
			Help: "Whether the last poll succeeded (1) or not (0)",
		}, []string{"coordinator"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "printmon_prusalink_last_success_timestamp_seconds",
			Help: "Unix time of the last successful poll",
		}, []string{"coordinator"}),
		intervalSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "printmon_prusalink_update_interval_seconds",
			Help: "Current polling interval",
		}, []string{"coordinator"}),
	}
}

func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.printerState, c.bedTempC, c.bedTargetC, c.nozzleTempC, c.nozzleTargetC,
		c.zHeightMM, c.printSpeedPct, c.jobActive, c.progressPct, c.printTimeS, c.printTimeLeftS,
	} {
		ch <- d
	}
	c.updateSuccess.Describe(ch)
	c.lastSuccess.Describe(ch)
	c.intervalSeconds.Describe(ch)
}

func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	if info, ok := c.printer.Data(); ok {
		current := StateValue(info.State.Flags)
		for _, state := range printerStates {
			ch <- prometheus.MustNewConstMetric(c.printerState, prometheus.GaugeValue, boolFloat(state == current), state)
		}
		gauge(ch, c.bedTempC, info.Telemetry.TempBed)
		gauge(ch, c.nozzleTempC, info.Telemetry.TempNozzle)
		gauge(ch, c.zHeightMM, info.Telemetry.ZHeight)
		gauge(ch, c.printSpeedPct, info.Telemetry.PrintSpeed)
		if bed := info.Temperature.Bed; bed != nil {
			gauge(ch, c.bedTargetC, &bed.Target)
		}
		if tool := info.Temperature.Tool0; tool != nil {
			gauge(ch, c.nozzleTargetC, &tool.Target)
		}
	}

	if info, ok := c.job.Data(); ok {
		active := boolFloat(info.Job != nil)
		gauge(ch, c.jobActive, &active)
		if p := info.Progress; p != nil {
			progress := p.Completion * 100
			gauge(ch, c.progressPct, &progress)
			gauge(ch, c.printTimeS, &p.PrintTime)
			gauge(ch, c.printTimeLeftS, &p.PrintTimeLeft)
		}
	}

	c.setCoordinator("printer", c.printer.LastUpdateSuccess(), c.printer.LastSuccessTime().Unix(), c.printer.UpdateInterval().Seconds())
	c.setCoordinator("job", c.job.LastUpdateSuccess(), c.job.LastSuccessTime().Unix(), c.job.UpdateInterval().Seconds())
	c.updateSuccess.Collect(ch)
	c.lastSuccess.Collect(ch)
	c.intervalSeconds.Collect(ch)
}

func (c *MetricsCollector) setCoordinator(name string, success bool, lastSuccess int64, interval float64) {
	c.updateSuccess.WithLabelValues(name).Set(boolFloat(success))
	if lastSuccess > 0 {
		c.lastSuccess.WithLabelValues(name).Set(float64(lastSuccess))
	}
	c.intervalSeconds.WithLabelValues(name).Set(interval)
}

func gauge(ch chan<- prometheus.Metric, desc *prometheus.Desc, v *float64) {
	if v == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, *v)
}

func boolFloat(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
