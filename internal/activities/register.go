package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.BeginIngestionActivity)
	w.RegisterActivity(a.ProcessPageBatchActivity)
	w.RegisterActivity(a.CompleteIngestionActivity)
	w.RegisterActivity(a.FailIngestionActivity)
}
