package indexer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	filesIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memoryd_files_indexed_total",
		Help: "Number of files successfully indexed.",
	})
	chunksEmbedded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memoryd_chunks_embedded_total",
		Help: "Number of content chunks embedded into the vector index.",
	})
	indexErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memoryd_index_errors_total",
		Help: "Number of failed indexing operations.",
	})
)
