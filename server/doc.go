// Package server is the HTTP transport of the local job runtime.
//
// Every route runs behind recovery, request id, request logging and a body
// size limit. Job routes live in server/endpoint:
//
//	POST /run          queue a job, 202 {"id","status"}
//	POST /runsync      queue a job and wait for it
//	GET  /status/:id   {"id","status","output","error"}
//	GET  /stream/:id   messages after ?offset=N
//	POST /cancel/:id   cancel a waiting or running job
//	GET  /health       component health and the cached model
package server
