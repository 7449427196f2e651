//go:build !release

package log

import "log"

// Print calls the standard log.Print()
func Print(v ...interface{}) {
	log.Print(v...)
}

// Printf calls the standard log.Printf()
func Printf(format string, v ...interface{}) {
	log.Printf(format, v...)
}

// Println calls the standard log.Println()
func Println(v ...interface{}) {
	log.Println(v...)
}

// Fatal calls the standard log.Fatal()
func Fatal(v ...interface{}) {
	log.Fatal(v...)
}

// Fatalf calls the standard log.Fatalf()
func Fatalf(format string, v ...interface{}) {
	log.Fatalf(format, v...)
}

// Fatalln calls the standard log.Fatalln()
func Fatalln(v ...interface{}) {
	log.Fatalln(v...)
}

// Debug logs a message at debug level.
func Debug(v ...interface{}) {
	log.Print(append([]interface{}{"[DEBUG] "}, v...)...)
}

// Debugf logs a formatted message at debug level.
func Debugf(format string, v ...interface{}) {
	log.Printf("[DEBUG] "+format, v...)
}

// Info logs a message at info level.
func Info(v ...interface{}) {
	log.Print(append([]interface{}{"[INFO] "}, v...)...)
}

// Infof logs a formatted message at info level.
func Infof(format string, v ...interface{}) {
	log.Printf("[INFO] "+format, v...)
}

// Warn logs a message at warn level.
func Warn(v ...interface{}) {
	log.Print(append([]interface{}{"[WARN] "}, v...)...)
}

// Warnf logs a formatted message at warn level.
func Warnf(format string, v ...interface{}) {
	log.Printf("[WARN] "+format, v...)
}
