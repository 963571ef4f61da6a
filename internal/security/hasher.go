// security содержит примитив хэширования паролей.
//
// Ядро сервиса не знает, как именно хэшируются пароли: оно работает через
// интерфейс PasswordHasher, а реализация по умолчанию — Argon2id с
// случайной солью на каждый вызов и PHC-кодировкой результата.
package security

import "errors"

// ErrPasswordTooShort — пароль короче минимально допустимой длины.
// Политика длины принадлежит примитиву хэширования, а не ядру.
var ErrPasswordTooShort = errors.New("password is too short")

// PasswordHasher — контракт примитива хэширования паролей.
type PasswordHasher interface {
	// Hash возвращает новый солёный хэш пароля (PHC-строка).
	Hash(password string) (string, error)
	// Verify сравнивает пароль с хэшем за константное время.
	// Ошибка означает повреждённый/неподдерживаемый формат хэша,
	// а не неверный пароль.
	Verify(hash, password string) (bool, error)
}
