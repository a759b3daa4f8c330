package weather

import (
	"fmt"
	"strings"
)

// Advice is golf-specific guidance derived from conditions.
type Advice struct {
	Overall         string   `json:"overall"`
	Temperature     string   `json:"temperature"`
	Wind            string   `json:"wind"`
	Conditions      string   `json:"conditions"`
	Recommendations []string `json:"recommendations"`
}

// GolfAdvice builds the full advice set for c.
func GolfAdvice(c Conditions) Advice {
	return Advice{
		Overall:         OverallAssessment(c),
		Temperature:     TemperatureAdvice(c.Temperature),
		Wind:            WindAdvice(c.WindSpeed, c.WindDirection),
		Conditions:      ConditionsAdvice(c.UVIndex, c.Humidity),
		Recommendations: Recommendations(c),
	}
}

// TemperatureAdvice describes how temperature (°F) affects ball flight and greens.
func TemperatureAdvice(temp int) string {
	switch {
	case temp < 60:
		return "Cold conditions will reduce ball compression. Consider softer compression balls for better distance. Expect shorter drives and less spin control."
	case temp < 70:
		return "Cool but playable conditions. Ball performance will be slightly reduced. Good conditions for accuracy-focused play."
	case temp <= 80:
		return "Ideal golf temperature! Ball compression and performance are optimal. Perfect conditions for your best game."
	case temp <= 90:
		return "Warm conditions will increase ball compression for longer drives. Expect firmer, faster greens with more roll and less stopping power."
	default:
		return "Hot conditions - stay hydrated! Expect maximum ball distance but very firm, fast greens. Consider early morning or late afternoon play."
	}
}

// WindAdvice describes club and flight adjustments for wind (mph).
func WindAdvice(speed int, direction string) string {
	switch {
	case speed <= 5:
		return fmt.Sprintf("Light breeze from the %s - excellent conditions for accuracy and putting. Perfect day for working on your short game.", direction)
	case speed <= 12:
		return fmt.Sprintf("Moderate %d mph wind from the %s. Adjust club selection and aim accordingly. Focus on lower ball flight for better control.", speed, direction)
	case speed <= 20:
		return fmt.Sprintf("Strong %d mph wind from the %s. Expect significant ball movement. Use one club up/down for headwind/tailwind. Grip control is crucial.", speed, direction)
	default:
		return fmt.Sprintf("Very strong %d mph wind from the %s. Challenging conditions! Focus on course management and conservative play. Consider postponing if possible.", speed, direction)
	}
}

// ConditionsAdvice covers sun protection and how humidity plays on the greens.
func ConditionsAdvice(uv, humidity float64) string {
	var parts []string
	switch {
	case uv <= 2:
		parts = append(parts, "Low UV - minimal sun protection needed.")
	case uv <= 5:
		parts = append(parts, "Moderate UV - consider sunscreen and a hat.")
	case uv <= 7:
		parts = append(parts, "High UV - sunscreen and protective clothing recommended.")
	default:
		parts = append(parts, "Very high UV - essential to use strong sunscreen, hat, and seek shade when possible.")
	}

	if humidity < 40 {
		parts = append(parts, "Low humidity means firmer conditions and more ball roll.")
	} else if humidity > 70 {
		parts = append(parts, "High humidity will make greens softer and more receptive to shots.")
	}
	return strings.Join(parts, " ")
}

// Playability scores conditions out of 10, docking points for extreme
// temperature and strong wind.
func Playability(c Conditions) int {
	score := 10
	switch {
	case c.Temperature < 50 || c.Temperature > 95:
		score -= 3
	case c.Temperature < 60 || c.Temperature > 85:
		score--
	}
	switch {
	case c.WindSpeed > 20:
		score -= 3
	case c.WindSpeed > 12:
		score--
	}
	return score
}

// OverallAssessment summarizes the playability score.
func OverallAssessment(c Conditions) string {
	switch score := Playability(c); {
	case score >= 9:
		return "Excellent golf conditions! Perfect day to be on the course."
	case score >= 7:
		return "Very good conditions with minor challenges. Great day for golf!"
	case score >= 5:
		return "Good playable conditions. Some adjustments needed but enjoyable round expected."
	case score >= 3:
		return "Challenging but manageable conditions. Focus on course management."
	default:
		return "Difficult conditions. Consider if you want to proceed or wait for better weather."
	}
}

// Recommendations lists equipment and strategy tips. The result is never nil.
func Recommendations(c Conditions) []string {
	recs := []string{}
	if c.Temperature < 60 {
		recs = append(recs, "Bring extra layers and consider softer compression balls")
	} else if c.Temperature > 85 {
		recs = append(recs, "Bring plenty of water and electrolyte drinks")
	}

	if c.WindSpeed > 12 {
		recs = append(recs,
			"Focus on grip control and consider rain gloves for better hold",
			"Practice low ball flight shots on the range",
		)
	}

	if c.Humidity > 70 {
		recs = append(recs, "Expect softer greens - be more aggressive with approach shots")
	} else if c.Humidity < 40 {
		recs = append(recs, "Expect firm conditions - plan for extra roll on drives and approaches")
	}
	return recs
}
