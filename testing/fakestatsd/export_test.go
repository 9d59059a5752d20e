package fakestatsd

var Parse = parse
