/*
Package observability turns the engines' lifecycle hooks into structured logs and Prometheus
metrics.

	metrics, err := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := domain.CombineHooks(observability.LogHooks(logger), metrics.Hooks())
	eng, err := conductor.New(g, conductor.WithLifecycleHooks(hooks))
*/
package observability
