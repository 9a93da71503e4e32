package resultdto

type Validation struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

type BatchResult struct {
	Index      int        `json:"index"`
	GameID     string     `json:"game_id"`
	Validation Validation `json:"validation"`
}

type BatchUpdateResponse struct {
	OverallValid bool          `json:"overall_valid"`
	Results      []BatchResult `json:"results"`
}
