// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package connection

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	red "github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/errors"
)

var DefaultRecvTimeout = 10 * time.Second

// RedisConnection mirrors simulation traffic over Redis lists: one push list
// per mirrored channel ("cangw.<run>.<channel>") and a shared pull list for
// inbound messages. Envelope: msgpack {marker, channel, payload}.
type RedisConnection struct {
	Run string // run identifier, namespaces the lists
	Url string

	RecvTimeout time.Duration

	ctx     context.Context
	client  *red.Client
	version string
}

func (r *RedisConnection) Connect(channels []string) error {
	slog.Info(fmt.Sprintf("Redis: Connect: %s", r.Url))
	if r.Run == "" {
		return errors.NewConnectionError(nil, "run identifier not configured")
	}
	if r.RecvTimeout == 0 {
		r.RecvTimeout = DefaultRecvTimeout
	}
	for _, ch := range channels {
		slog.Info(fmt.Sprintf("Redis: PUSH: %s", r.pushList(ch)))
	}
	slog.Info(fmt.Sprintf("Redis: PULL: %s", r.pullList()))

	r.ctx = context.Background()
	opt, err := red.ParseURL(r.Url)
	if err != nil {
		return err
	}
	r.client = red.NewClient(opt)

	c := r.client.InfoMap(r.ctx, "server")
	if c.Err() != nil {
		return errors.NewConnectionError(c.Err(), "redis server info failed")
	}
	r.version = c.Item("Server", "redis_version")
	slog.Info(fmt.Sprintf("Redis: Version: %s", r.version))

	return nil
}

func (r *RedisConnection) Disconnect() {
	slog.Info("Redis: Disconnect")
	if r.client != nil {
		r.client.Close()
		r.client = nil
	}
}

func (r *RedisConnection) pushList(channel string) string {
	return fmt.Sprintf("cangw.%s.%s", r.Run, channel)
}

func (r *RedisConnection) pullList() string {
	return fmt.Sprintf("cangw.%s.ctrl", r.Run)
}

func (r *RedisConnection) SendMessage(msg []byte, channel string) (err error) {
	if r.client == nil {
		return errors.ErrConnNotConnected
	}
	buf := new(bytes.Buffer)
	enc := msgpack.NewEncoder(buf)
	enc.EncodeString("CGCH")
	enc.EncodeString(channel)
	enc.EncodeBytes(msg)
	d := buf.Bytes()
	slog.Debug(fmt.Sprintf("Redis: LPUSH -> %s (%d bytes)", r.pushList(channel), len(d)))
	r.client.LPush(r.ctx, r.pushList(channel), d)
	return
}

func (r *RedisConnection) WaitMessage(immediate bool) (msg []byte, channel string, err error) {
	if r.client == nil {
		return nil, "", errors.ErrConnNotConnected
	}
	timeout := r.RecvTimeout
	if immediate {
		timeout = time.Second
	}
	slog.Debug(fmt.Sprintf("Redis: BRPOP <- %s (timeout=%v)", r.pullList(), timeout))
	c := r.client.BRPop(r.ctx, timeout, r.pullList())
	if c.Err() != nil {
		return nil, "", errors.ErrConnTimeoutWait
	}
	if len(c.Val()) != 2 {
		return nil, "", errors.ErrConnRedisRespIncomplete
	}

	dec := msgpack.NewDecoder(bytes.NewReader([]byte(c.Val()[1])))
	marker, err := dec.DecodeString()
	if err != nil || marker != "CGCH" {
		return nil, "", errors.NewConnectionError(err, "unexpected envelope marker")
	}
	if channel, err = dec.DecodeString(); err != nil {
		return nil, "", errors.NewConnectionError(err, "envelope channel decode failed")
	}
	if msg, err = dec.DecodeBytes(); err != nil {
		return nil, "", errors.NewConnectionError(err, "envelope payload decode failed")
	}
	return msg, channel, nil
}
