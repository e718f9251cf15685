// Package kafka is the Kafka ingress of the worker.
//
// A consumer group member reads {"id","input"} job messages from the jobs
// topic and runs each job to completion before fetching the next. Every
// message a job produces is written to the results topic keyed by the job
// id, with a "type" header of error, result or batch. A final message with
// type "done" carries the terminal status:
//
//	{"id":"job-1","status":"COMPLETED"}
//
// Configuration:
//
//	kafka:
//	  brokers: ["localhost:9092"]
//	  group_id: "whisperjob"
//	  jobs_topic: "whisperjob.jobs"
//	  results_topic: "whisperjob.results"
//	  enable_sasl: true
//	  sasl_mechanism: "SCRAM-SHA-512"
package kafka
