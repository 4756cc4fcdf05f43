package main

import "github.com/prometheus/client_golang/prometheus"

var (
	recipesCreatedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cookbook_recipes_created_total",
		Help: "Total number of recipes created.",
	})
	recipeViewsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cookbook_recipe_views_total",
		Help: "Total number of recipe detail views.",
	})
	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cookbook_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})
	catalogExportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cookbook_catalog_exports_total",
		Help: "Scheduled catalog exports by result.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(recipesCreatedCounter, recipeViewsCounter, httpRequestsTotal, catalogExportsTotal)
}
