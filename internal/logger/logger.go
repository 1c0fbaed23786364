// Package logger — единый вывод логов pidtune с префиксом и учётом quiet.
package logger

import "log"

// Quiet при true отключает информационные сообщения (Info); Error выводится всегда.
var Quiet bool

// Info выводит сообщение с префиксом "pidtune: ", если Quiet == false.
func Info(format string, args ...interface{}) {
	if Quiet {
		return
	}
	log.Printf("pidtune: "+format, args...)
}

// Error выводит сообщение об ошибке с префиксом "pidtune: " всегда.
func Error(format string, args ...interface{}) {
	log.Printf("pidtune: "+format, args...)
}
