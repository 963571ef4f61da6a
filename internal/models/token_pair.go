package models

import "time"

// TokenPair — пара токенов, выдаваемая при успешном login/refresh.
//
// Описание:
//   - AccessToken — короткоживущий подписанный JWT для доступа к API;
//   - RefreshToken — случайный непрозрачный секрет; сервер хранит только
//     актуальное значение на записи пользователя;
//   - AccessExpiresAt/RefreshExpiresAt — моменты истечения (UTC), транспорт
//     использует их как срок жизни cookie.
//
// Пара не персистится как объект: в БД попадает только refresh-половина.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
