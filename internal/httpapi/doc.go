// Package httpapi exposes the board over HTTP: task CRUD for UIs, and the
// queue/pickup/complete/status endpoints workers poll.
package httpapi
