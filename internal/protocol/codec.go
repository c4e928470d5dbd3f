package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	apperrors "github.com/koopa0/system-design/14-realtime-match/pkg/errors"
)

// Encode 將訊息類型與 payload 編碼為信封
func Encode(msgType string, payload any) ([]byte, error) {
	if msgType == "" {
		return nil, fmt.Errorf("encode envelope: empty type")
	}

	env := Envelope{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", msgType, err)
		}
		env.Payload = raw
	}

	return json.Marshal(env)
}

// DecodeEnvelope 解析信封，不解析 payload
func DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, apperrors.ErrInvalidMessage.WithDetails("empty frame")
	}

	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, apperrors.ErrInvalidMessage.WithDetails(err.Error())
	}
	if env.Type == "" {
		return Envelope{}, apperrors.ErrInvalidMessage.WithDetails("missing type")
	}

	return env, nil
}

// DecodePayload 將 payload 解成 T
//
// 空 payload 或 null 會得到 T 的零值（startRaid、leave 等訊息本來就沒有內容）。
func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.Payload) == 0 || bytes.Equal(bytes.TrimSpace(env.Payload), []byte("null")) {
		return out, nil
	}
	if err := json.Unmarshal(env.Payload, &out); err != nil {
		return out, apperrors.ErrInvalidMessage.WithDetails(env.Type + ": " + err.Error())
	}
	return out, nil
}

// DecodeInbound 解析一則客戶端訊息
//
// 未知類型回傳 ErrInvalidMessage。
func DecodeInbound(b []byte) (Inbound, error) {
	env, err := DecodeEnvelope(b)
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case TypeJoinLobby:
		return decode[JoinLobby](env)
	case TypeStartRaid:
		return decode[StartRaid](env)
	case TypeBossDamage:
		return decode[BossDamage](env)
	case TypeObstacleHit:
		return decode[ObstacleHit](env)
	case TypePlayerMove:
		return decode[PlayerMove](env)
	case TypeShoot:
		return decode[Shoot](env)
	case TypeDuelQueueJoin:
		return decode[DuelQueueJoin](env)
	case TypeDuelQueueCancel:
		return decode[DuelQueueCancel](env)
	case TypeDuelUpdate:
		return decode[DuelUpdate](env)
	case TypeDuelHitConfirm:
		return decode[DuelHitConfirm](env)
	case TypePowerUpCollect:
		return decode[PowerUpCollect](env)
	case TypeSpectate:
		return decode[Spectate](env)
	case TypeStopSpectating:
		return decode[StopSpectating](env)
	case TypeLeave:
		return decode[Leave](env)
	case TypeConcede:
		return decode[Concede](env)
	case TypeGetLeaderboard:
		return decode[GetLeaderboard](env)
	case TypeListDuels:
		return decode[ListDuels](env)
	case TypeChat:
		return decode[Chat](env)
	case TypePing:
		return decode[Ping](env)
	default:
		return nil, apperrors.ErrInvalidMessage.WithDetails("unknown type " + env.Type)
	}
}

func decode[T Inbound](env Envelope) (Inbound, error) {
	msg, err := DecodePayload[T](env)
	if err != nil {
		return nil, err
	}
	return msg, nil
}
