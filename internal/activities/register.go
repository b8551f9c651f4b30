package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.CallStageActivity)
	w.RegisterActivity(a.GenerateHTMLActivity)
	w.RegisterActivity(a.GeneratePDFActivity)
	w.RegisterActivity(a.RecordStageActivity)
	w.RegisterActivity(a.UpdateRunStatusActivity)
	w.RegisterActivity(a.SaveReportActivity)
}
