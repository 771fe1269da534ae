// Package kubernetes implements the cluster adapter.
//
// Pods, Deployments and Services carrying the managed-workload label are watched
// through a controller-runtime manager whose cache is scoped to one namespace.
// Each reconcile reads the object from the cache and either stores its normalized
// status or, when the object is gone, removes the status recorded under its name.
package kubernetes
