// Package http exposes the reservation engine over JSON.
//
// The router serves these endpoints:
//   - GET / and GET /info: health and deployment details.
//   - POST /auth/tokens: admin login. Body: {"email","password"}. Response:
//     {"token","expires_at"}; the token is also set as the `auth_token` cookie.
//   - DELETE /auth/tokens/current: revokes the presented token.
//   - GET /rooms, GET /rooms/{id}: public room catalog. POST /rooms,
//     PATCH /rooms/{id} and DELETE /rooms/{id} require an auth token and exchange
//     the `roomDTO` payload defined in room_handler.go.
//   - GET /rooms/{id}/intervals?date=DD-MM-YYYY: booked intervals for a day.
//   - GET /rooms/{id}/collision?date=DD-MM-YYYY&start=HH:MM&end=HH:MM: whether
//     a candidate slot clashes with a held reservation.
//   - POST /reservations: request a reservation. Answers 201 with the pending
//     reservation, 409 when the slot is taken and 422 for invalid input.
//   - GET /reservations: upcoming reservations; requires an auth token.
//   - GET /reservations/{token}: the reservation and its room.
//   - POST /reservations/{token}/approve: approves the reservation. Repeating
//     the call answers 200 with the current state.
//
// Auth tokens are read from an `Authorization: Bearer` header or the
// `auth_token` cookie. Errors use the errorResponse shape in responder.go.
package http
