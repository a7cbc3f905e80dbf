package middleware

import (
	"fmt"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
)

// RecoverFromPanic вызывается через defer. onPanic (если задан) получает значение паники,
// например чтобы ответить пользователю.
func RecoverFromPanic(fields log.Fields, onPanic func(r any)) {
	r := recover()
	if r == nil {
		return
	}
	log.WithFields(fields).WithFields(log.Fields{
		"component": "panic_recovery",
		"panic":     fmt.Sprintf("%v", r),
		"stack":     string(debug.Stack()),
	}).Error("ПАНИКА в обработчике — восстановлено")
	if onPanic != nil {
		onPanic(r)
	}
}
