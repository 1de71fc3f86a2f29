// Package http provides HTTP handlers and middleware for the canteen
// reservation API.
//
// The router exposes the following endpoints:
//   - POST /reservations: submits a group reservation. Body:
//     {"requester_id","meal_date","meal_category","member_ids","remark"}.
//     Responds 201 with the `reservationDTO` payload defined in
//     reservation_handler.go.
//   - GET /reservations?date=YYYY-MM-DD: lists reservations for one civil
//     date together with a consumption summary.
//   - GET /reservations/{id}: returns one reservation.
//   - DELETE /reservations/{id}: cancels a reservation while no member has
//     consumed yet.
//   - POST /reservations/{id}/complete: administratively closes a
//     reservation.
//   - POST /confirmations/self, /confirmations/admin, /confirmations/badge:
//     record a consumption confirmation over the respective channel,
//     exchanging the confirmation DTOs defined in confirmation_handler.go.
//   - GET /confirmations: queries the append-only audit trail with optional
//     reservation_id, person_id, channel, since, until and limit filters.
//
// Authentication and authorization are outer concerns; deployments put
// their own session middleware in front of the router. Request/response
// DTOs live alongside their respective handlers so tests and documentation
// share the same ground truth.
package http
