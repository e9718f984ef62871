package backupgql

import "encoding/json"

// JSON is a graphql scalar holding any json value.
type JSON struct {
	Data interface{}
}

func FromRaw(raw json.RawMessage) (JSON, error) {
	var data interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return JSON{}, err
	}
	return JSON{Data: data}, nil
}

func (JSON) ImplementsGraphQLType(name string) bool {
	return name == "JSON"
}

func (a *JSON) UnmarshalGraphQL(input interface{}) error {
	a.Data = input
	return nil
}

func (a JSON) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Data)
}
