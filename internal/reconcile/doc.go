// Package reconcile turns raw friend records, pending zone requests and
// location reports into the per-counterpart view the app renders.
//
// Everything here is a pure function of its inputs (plus wall-clock time
// passed in explicitly). Callers own I/O: they load snapshots, call into this
// package and write the resulting plans back to the store.
package reconcile
