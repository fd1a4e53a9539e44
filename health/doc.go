// Package health reports whether latexbot can serve renders.
//
// A Checker reports one dependency as Healthy, Degraded, or Unhealthy. The
// service registers two: DirChecker confirms the image cache directory is
// writable and HTTPChecker confirms the rendering service answers. An
// Aggregator runs them together and RegisterHandlers exposes the result:
//
//	agg := health.NewAggregator()
//	agg.Register(health.NewDirChecker("cache", cacheDir))
//	agg.Register(health.NewHTTPChecker("render", endpoint, client))
//	health.RegisterHandlers(mux, agg)
//
// /healthz always answers OK while the process runs. /readyz and /health run
// the checks and answer 503 when any is unhealthy.
package health
