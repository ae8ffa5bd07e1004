// utilitário pequeno para formatação rápida/consistente de snowflakes em
// rotas e logs. Evita puxar fmt só para isso e garante base 10 sempre.

package discord

import "strconv"

func formatID(v uint64) string { return strconv.FormatUint(v, 10) }

func parseID(s string) (uint64, error) { return strconv.ParseUint(s, 10, 64) }
