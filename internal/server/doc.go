// Package server implements the optional local status API.
//
// The API is read-only: it exposes the run history recorded by the CLI
// (deploys and rollbacks) so dashboards or scripts on the same host can
// query what was last shipped where without parsing the SQLite file
// themselves. It never talks to the deployment backend and cannot
// trigger deploys.
//
// Endpoints:
//   - GET /health: liveness plus configured app names
//   - GET /api/status: latest run per service identity
//   - GET /api/history/{project}/{environment}/{service}: recent runs
//     for one service
//
// Requests are rate limited per client IP.
package server
