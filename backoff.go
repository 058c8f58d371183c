package httpclient

import "time"

// CalculateLinearBackoff вычисляет задержку после неудачной попытки attempt
// (нумерация с нуля): baseDelay + attempt*step. С настройками по умолчанию
// получаются паузы 1, 3, 5, 7 секунд.
func CalculateLinearBackoff(attempt int, baseDelay, step time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return baseDelay + time.Duration(attempt)*step
}

// secondsToDuration переводит секунды из заголовков и тел ответов Discord в Duration
func secondsToDuration(seconds float64) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
