package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argonAlgorithm = "argon2id"

	defaultMemoryKB    uint32 = 64 * 1024
	defaultTimeCost    uint32 = 2
	defaultParallelism uint8  = 2
	defaultSaltLength  uint32 = 16
	defaultKeyLength   uint32 = 32

	minPasswordBytes = 8
)

// Argon2Params — стоимостные параметры Argon2id.
type Argon2Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Argon2Hasher реализует PasswordHasher поверх Argon2id.
// Экземпляр иммутабелен после создания и безопасен для конкурентного
// использования.
type Argon2Hasher struct {
	params Argon2Params
}

// NewArgon2Hasher создаёт хэшер с заданными параметрами.
// Нулевые поля заменяются значениями по умолчанию.
func NewArgon2Hasher(p Argon2Params) *Argon2Hasher {
	if p.Memory == 0 {
		p.Memory = defaultMemoryKB
	}
	if p.Time == 0 {
		p.Time = defaultTimeCost
	}
	if p.Parallelism == 0 {
		p.Parallelism = defaultParallelism
	}
	if p.SaltLength == 0 {
		p.SaltLength = defaultSaltLength
	}
	if p.KeyLength == 0 {
		p.KeyLength = defaultKeyLength
	}

	return &Argon2Hasher{params: p}
}

// Hash хэширует пароль Argon2id со свежей случайной солью.
// Результат — PHC-строка вида
// $argon2id$v=19$m=65536,t=2,p=2$<salt>$<hash>.
func (a *Argon2Hasher) Hash(password string) (string, error) {
	const op = "security.argon2.Hash"

	if len(password) < minPasswordBytes {
		return "", fmt.Errorf("%s: %w", op, ErrPasswordTooShort)
	}

	salt := make([]byte, a.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		a.params.Time,
		a.params.Memory,
		a.params.Parallelism,
		a.params.KeyLength,
	)

	encoded := fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argonAlgorithm,
		argon2.Version,
		a.params.Memory,
		a.params.Time,
		a.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)

	return encoded, nil
}

// Verify сравнивает пароль с PHC-хэшем за константное время.
// Параметры берутся из самой строки хэша, так что повышение стоимости в
// конфигурации не ломает старые записи.
func (a *Argon2Hasher) Verify(hash, password string) (bool, error) {
	const op = "security.argon2.Verify"

	parsed, err := parsePHC(hash)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	computed := argon2.IDKey(
		[]byte(password),
		parsed.salt,
		parsed.time,
		parsed.memory,
		parsed.parallelism,
		uint32(len(parsed.key)),
	)

	return subtle.ConstantTimeCompare(computed, parsed.key) == 1, nil
}

var _ PasswordHasher = (*Argon2Hasher)(nil)

type phcParts struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func parsePHC(encoded string) (*phcParts, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, errors.New("invalid phc format")
	}

	if parts[1] != argonAlgorithm {
		return nil, errors.New("unsupported algorithm")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, errors.New("invalid argon2 version")
	}
	if version != argon2.Version {
		return nil, errors.New("unsupported argon2 version")
	}

	p := &phcParts{}
	for _, pair := range strings.Split(parts[3], ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, errors.New("invalid cost parameters")
		}

		v, err := strconv.ParseUint(kv[1], 10, 32)
		if err != nil {
			return nil, errors.New("invalid cost parameters")
		}

		switch kv[0] {
		case "m":
			p.memory = uint32(v)
		case "t":
			p.time = uint32(v)
		case "p":
			if v > 255 {
				return nil, errors.New("invalid cost parameters")
			}
			p.parallelism = uint8(v)
		default:
			return nil, errors.New("invalid cost parameters")
		}
	}
	if p.memory == 0 || p.time == 0 || p.parallelism == 0 {
		return nil, errors.New("invalid cost parameters")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, errors.New("invalid salt encoding")
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return nil, errors.New("invalid hash encoding")
	}

	p.salt = salt
	p.key = key

	return p, nil
}
