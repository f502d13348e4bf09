package mq

import "errors"

// ErrReject — сообщение не подлежит повторной доставке.
//
// Обработчик оборачивает этой ошибкой некорректные и незнакомые
// сообщения: consumer отправит их в DLQ вместо возврата в очередь.
var ErrReject = errors.New("message rejected")
