package domain

import "time"

// DateLayout é o formato das datas de vencimento gravadas no banco.
const DateLayout = "2006-01-02"

// Day devolve o dia civil de t no fuso informado.
func Day(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// AddDays soma n dias a uma data no formato DateLayout.
func AddDays(day string, n int) (string, error) {
	t, err := time.Parse(DateLayout, day)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(DateLayout), nil
}

// DaysLeft arredonda para cima os dias restantes até end; nunca negativo.
func DaysLeft(now, end time.Time) int {
	d := end.Sub(now)
	if d <= 0 {
		return 0
	}
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}
