package schema

const (
	GroupDemographic   = "demographic"
	GroupSocioeconomic = "socioeconomic"
	GroupAcademic      = "academic"
)

func choice(name, label, group string, def any, choices ...string) Feature {
	return Feature{Name: name, Label: label, Group: group, Kind: Categorical, Choices: choices, Default: def}
}

func bounded(name, label, group string, min, max float64, integer bool, def any) Feature {
	return Feature{Name: name, Label: label, Group: group, Kind: Bounded, Min: min, Max: max, Integer: integer, Default: def}
}

func semester(ordinal, group string) []Feature {
	prefix := "Curricular units " + ordinal + " sem "
	return []Feature{
		bounded(prefix+"(credited)", ordinal+" semester: credited units", group, 0, 20, true, 0),
		bounded(prefix+"(enrolled)", ordinal+" semester: enrolled units", group, 0, 20, true, 5),
		bounded(prefix+"(evaluations)", ordinal+" semester: evaluations", group, 0, 20, true, 5),
		bounded(prefix+"(approved)", ordinal+" semester: approved units", group, 0, 20, true, 5),
		bounded(prefix+"(grade)", ordinal+" semester: average grade", group, 0, 20, false, 12.0),
		bounded(prefix+"(without evaluations)", ordinal+" semester: units without evaluations", group, 0, 10, true, 0),
	}
}

// Default is the 34-feature student schema collected by the prediction form.
func Default() *Schema {
	features := []Feature{
		choice("Marital status", "Marital status (1=single, 2=married, ...)", GroupDemographic, 1, "1", "2", "3", "4", "5", "6"),
		choice("Gender", "Gender (1=male, 0=female)", GroupDemographic, 1, "1", "0"),
		bounded("Age at enrollment", "Age at enrollment", GroupDemographic, 17, 70, true, 20),
		choice("Nacionality", "Nationality code", GroupDemographic, 1, "1", "41", "2", "6", "11", "13", "14", "17", "101"),
		choice("International", "International student", GroupDemographic, 0, "0", "1"),
		bounded("Mother's qualification", "Mother's qualification code", GroupDemographic, 1, 44, true, 1),
		bounded("Father's qualification", "Father's qualification code", GroupDemographic, 1, 44, true, 1),
		bounded("Mother's occupation", "Mother's occupation code", GroupDemographic, 1, 44, true, 1),
		bounded("Father's occupation", "Father's occupation code", GroupDemographic, 1, 44, true, 1),
		choice("Displaced", "Displaced from home region", GroupDemographic, 1, "1", "0"),
		choice("Educational special needs", "Educational special needs", GroupDemographic, 0, "0", "1"),

		choice("Debtor", "Has outstanding debt", GroupSocioeconomic, 0, "0", "1"),
		choice("Tuition fees up to date", "Tuition fees up to date", GroupSocioeconomic, 1, "1", "0"),
		choice("Scholarship holder", "Scholarship holder", GroupSocioeconomic, 0, "0", "1"),
		bounded("Unemployment rate", "National unemployment rate (%)", GroupSocioeconomic, 0, 20, false, 10.0),
		bounded("Inflation rate", "Inflation rate (%)", GroupSocioeconomic, -5, 20, false, 1.4),
		bounded("GDP", "GDP", GroupSocioeconomic, -10, 10, false, 0.0),
		bounded("Application mode", "Application mode code", GroupSocioeconomic, 1, 18, true, 1),
		bounded("Application order", "Application order", GroupSocioeconomic, 0, 9, true, 1),
		bounded("Course", "Course code", GroupSocioeconomic, 1, 9999, true, 33),
		choice("Daytime/evening attendance", "Attendance (1=daytime, 0=evening)", GroupSocioeconomic, 1, "1", "0"),
		bounded("Previous qualification", "Previous qualification code", GroupSocioeconomic, 1, 43, true, 1),
	}
	features = append(features, semester("1st", GroupAcademic)...)
	features = append(features, semester("2nd", GroupAcademic)...)

	s, err := New(1, features)
	if err != nil {
		panic(err)
	}
	return s
}
