package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var MediaUploads = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "clinicblog_media_uploads_total",
	Help: "Number of media uploads by kind and result",
}, []string{"kind", "result"})

var MediaDeleteFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "clinicblog_media_delete_failures_total",
	Help: "Number of best-effort storage deletions that failed",
})

var PostSaves = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "clinicblog_post_saves_total",
	Help: "Number of post save attempts by target status and result",
}, []string{"status", "result"})

var CommentsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "clinicblog_comments_submitted_total",
	Help: "Number of comment submissions by result",
}, []string{"result"})

// Result maps an error to the label value used on the counters above.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
