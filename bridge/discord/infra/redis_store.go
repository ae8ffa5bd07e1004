package infra

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Scripts Lua: a checagem e a mutação precisam acontecer na mesma ida ao
// Redis, senão dois workers podem inicializar/estender a mesma chave em
// cima um do outro.

// decrOrInit: inexistente => inicializa com initial-1 (consome uma vaga) e
// aplica TTL; existente => DECR simples. O TTL só é setado na primeira
// batida da janela.
var decrOrInitScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  local v = tonumber(ARGV[1]) - 1
  redis.call('SET', KEYS[1], v, 'PX', tonumber(ARGV[2]))
  return v
end
return redis.call('DECR', KEYS[1])
`)

// extendTTL: só grava se o TTL pedido for maior que o restante (PTTL devolve
// -2 para chave inexistente e -1 para chave sem TTL, ambos < want).
var extendTTLScript = redis.NewScript(`
local want = tonumber(ARGV[1])
if redis.call('PTTL', KEYS[1]) < want then
  redis.call('SET', KEYS[1], 1, 'PX', want)
  return 1
end
return 0
`)

// RedisCounterStore implementa domain.CounterStore sobre um Redis
// compartilhado. É o que permite respeitar o limite do Discord entre
// múltiplos processos/máquinas.
type RedisCounterStore struct {
	rdb *redis.Client
}

func NewRedisCounterStore(rdb *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{rdb: rdb}
}

func (s *RedisCounterStore) DecrOrInit(ctx context.Context, key string, initial int64, ttl time.Duration) (int64, error) {
	return decrOrInitScript.Run(ctx, s.rdb, []string{key}, initial, ttl.Milliseconds()).Int64()
}

func (s *RedisCounterStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.rdb.PTTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

func (s *RedisCounterStore) ExtendTTL(ctx context.Context, key string, ttl time.Duration) error {
	return extendTTLScript.Run(ctx, s.rdb, []string{key}, ttl.Milliseconds()).Err()
}
