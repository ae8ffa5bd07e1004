// Package application contém os casos de uso do bridge: a decisão do rate
// limit compartilhado (Gate), a reconciliação de roles (Reconciler) e a
// política de retry das tarefas de fundo (TaskRunner).
//
// Ele depende apenas do pacote domain e não conhece net/http nem redis.
// Ex.: Gate.Acquire(ctx, op) bloqueia, libera ou devolve um erro Backoff.
package application
