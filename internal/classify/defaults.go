package classify

// DefaultSpecialties is the keyword table in priority order. When a transcript
// contains keywords for several specialties the earliest entry wins.
var DefaultSpecialties = []SpecialtyDef{
	{Name: "Pulmonology", Keywords: []string{"cough", "asthma", "wheezing", "shortness of breath"}},
	{Name: "Cardiology", Keywords: []string{"chest pain", "palpitations", "heart attack", "cardiac"}},
	{Name: "Neurology", Keywords: []string{"headache", "seizure", "stroke", "numbness"}},
	{Name: "Gastroenterology", Keywords: []string{"abdominal pain", "nausea", "diarrhea", "vomiting"}},
	{Name: "Orthopedics", Keywords: []string{"fracture", "sprain", "joint pain", "back pain"}},
	{Name: "Dermatology", Keywords: []string{"rash", "itch", "eczema", "psoriasis"}},
	{Name: "Psychiatry", Keywords: []string{"anxiety", "depression", "suicidal", "hallucinations"}},
	{Name: "Pediatrics", Keywords: []string{"child", "infant", "childhood", "pediatric"}},
	{Name: "OBGYN", Keywords: []string{"pregnancy", "labor", "uterus", "ovary", "prenatal"}},
	{Name: "ENT", Keywords: []string{"ear pain", "nosebleed", "throat", "sinus"}},
	{Name: "Oncology", Keywords: []string{"cancer", "tumor", "chemotherapy"}},
	{Name: "AllergyImmunology", Keywords: []string{"allergy", "hives", "anaphylaxis", "immune"}},
}

// DefaultSeverities holds one canonical description per ESI level.
var DefaultSeverities = []SeverityDef{
	{Level: 1, Text: "critical, not breathing, cardiac arrest"},
	{Level: 2, Text: "high risk, severe chest pain, stroke"},
	{Level: 3, Text: "moderate risk, needs resources"},
	{Level: 4, Text: "minor injury"},
	{Level: 5, Text: "stable"},
}
