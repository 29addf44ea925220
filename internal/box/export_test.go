package box

var origReader = cryptoRead
