// Package genie implements the client side of the Databricks Genie
// conversation API: submit a natural-language question, poll the message
// status until it completes, retrieve the result attachment, and render
// tabular results as fixed-width text.
//
// The package is split along the protocol's seams:
//
//   - Client is the authenticated HTTP transport. It carries no business
//     logic and does not interpret status codes.
//   - Poller drives one query through the submit/poll/retrieve state
//     machine and yields either a display string or a Failure.
//   - FormatDataArray renders a header-plus-rows table deterministically.
//   - Service is the facade: it converts every outcome, success or
//     failure, into a plain string and never lets an error escape.
//
// A Poller run owns exactly one remote conversation and keeps no state
// across runs; concurrent runs are independent.
package genie
